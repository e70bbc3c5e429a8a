package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// kind names the declared type of a field, as reported in coercion errors.
type kind string

const (
	kindString kind = "string"
	kindInt    kind = "int"
	kindBool   kind = "bool"
	kindLevel  kind = "LogLevel"
	kindList   kind = "list of strings"
	kindMap    kind = "mapping"
)

// field describes how one configuration key is parsed and stored. The same
// coercion is used for explicit overrides and for raw environment strings.
type field struct {
	kind   kind
	secret bool
	coerce func(v any) (any, error)
	apply  func(c *Config, v any)
}

var fields = map[string]field{
	"app_name":             stringField(func(c *Config, v string) { c.AppName = v }),
	"loglevel":             {kind: kindLevel, coerce: toLogLevel, apply: func(c *Config, v any) { c.LogLevel = v.(LogLevel) }},
	"frontend_port":        intField(func(c *Config, v int) { c.FrontendPort = v }),
	"backend_port":         intField(func(c *Config, v int) { c.BackendPort = v }),
	"api_url":              stringField(func(c *Config, v string) { c.APIURL = v }),
	"deploy_url":           stringField(func(c *Config, v string) { c.DeployURL = v }),
	"backend_host":         stringField(func(c *Config, v string) { c.BackendHost = v }),
	"db_url":               secret(stringField(func(c *Config, v string) { c.DBURL = v })),
	"redis_url":            stringField(func(c *Config, v string) { c.RedisURL = v }),
	"telemetry_enabled":    boolField(func(c *Config, v bool) { c.TelemetryEnabled = v }),
	"bun_path":             stringField(func(c *Config, v string) { c.BunPath = v }),
	"cors_allowed_origins": listField(func(c *Config, v []string) { c.CORSAllowedOrigins = v }),
	"tailwind":             {kind: kindMap, coerce: toMap, apply: func(c *Config, v any) { c.Tailwind = v.(map[string]any) }},
	"timeout":              intField(func(c *Config, v int) { c.Timeout = v }),
	"next_compression":     boolField(func(c *Config, v bool) { c.NextCompression = v }),
	"event_namespace":      stringField(func(c *Config, v string) { c.EventNamespace = v }),
	"frontend_packages":    listField(func(c *Config, v []string) { c.FrontendPackages = v }),
	"rxdeploy_url":         stringField(func(c *Config, v string) { c.RxDeployURL = v }),
	"username":             stringField(func(c *Config, v string) { c.Username = v }),
}

// deprecated maps removed keys to the message naming their replacement.
var deprecated = map[string]string{
	"db_config":  "use db_url instead",
	"admin_dash": "pass it as a param to rx.App instead",
	"env_path":   "use environment variables instead",
}

// fieldNames is the sorted list of declared keys, so overrides are applied in
// a stable order.
var fieldNames = func() []string {
	names := lo.Keys(fields)
	sort.Strings(names)
	return names
}()

func envName(field string) string {
	return strings.ToUpper(field)
}

func secret(f field) field {
	f.secret = true
	return f
}

func stringField(set func(*Config, string)) field {
	return field{
		kind:   kindString,
		coerce: func(v any) (any, error) { return cast.ToStringE(v) },
		apply:  func(c *Config, v any) { set(c, v.(string)) },
	}
}

func intField(set func(*Config, int)) field {
	return field{
		kind:   kindInt,
		coerce: toInt,
		apply:  func(c *Config, v any) { set(c, v.(int)) },
	}
}

func boolField(set func(*Config, bool)) field {
	return field{
		kind:   kindBool,
		coerce: toBool,
		apply:  func(c *Config, v any) { set(c, v.(bool)) },
	}
}

func listField(set func(*Config, []string)) field {
	return field{
		kind:   kindList,
		coerce: toList,
		apply:  func(c *Config, v any) { set(c, v.([]string)) },
	}
}

func toInt(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strconv.Atoi(strings.TrimSpace(s))
	}
	return cast.ToIntE(v)
}

func toBool(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strconv.ParseBool(strings.TrimSpace(s))
	}
	return cast.ToBoolE(v)
}

func toLogLevel(v any) (any, error) {
	if l, ok := v.(LogLevel); ok {
		return ParseLogLevel(string(l))
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}
	return ParseLogLevel(s)
}

// toList accepts a slice or a comma separated string.
func toList(v any) (any, error) {
	if s, ok := v.(string); ok {
		parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string { return strings.TrimSpace(p) })
		return lo.Compact(parts), nil
	}
	return cast.ToStringSliceE(v)
}

// toMap accepts a mapping or a JSON object string.
func toMap(v any) (any, error) {
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, fmt.Errorf("expected a mapping or JSON object: %w", err)
	}
	return m, nil
}
