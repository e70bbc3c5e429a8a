package config

import (
	"os"
	"sort"

	"github.com/samber/lo"
)

// Environ looks up an environment variable.
type Environ func(key string) (string, bool)

// OSEnviron reads the process environment.
var OSEnviron Environ = os.LookupEnv

// MapEnviron serves lookups from a fixed map.
func MapEnviron(env map[string]string) Environ {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// Resolve builds the effective configuration from the declared defaults, the
// explicit overrides and finally the environment, which wins last. Either a
// complete configuration or an error is returned.
func Resolve(overrides map[string]any, env Environ) (*Config, error) {
	if env == nil {
		env = OSEnviron
	}

	keys := lo.Keys(overrides)
	sort.Strings(keys)

	// Deprecated keys are rejected before anything else is looked at.
	for _, key := range keys {
		if replacement, ok := deprecated[key]; ok {
			return nil, &DeprecatedOptionError{Key: key, Replacement: replacement}
		}
	}

	cfg := Default()

	for _, key := range keys {
		f, ok := fields[key]
		if !ok {
			return nil, &ValidationError{Field: key, Reason: "unknown configuration key"}
		}
		v, err := f.coerce(overrides[key])
		if err != nil {
			return nil, &ValidationError{Field: key, Value: overrides[key], Reason: "expected " + string(f.kind)}
		}
		f.apply(&cfg, v)
	}

	_, hasName := overrides["app_name"]
	if err := applyEnv(&cfg, env); err != nil {
		return nil, err
	}
	if _, ok := env(envName("app_name")); ok {
		hasName = true
	}
	if !hasName {
		return nil, &ValidationError{Field: "app_name", Reason: "field required"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overwrites every field whose upper-cased name is set in env.
func applyEnv(cfg *Config, env Environ) error {
	for _, name := range fieldNames {
		raw, ok := env(envName(name))
		if !ok {
			continue
		}
		f := fields[name]
		v, err := f.coerce(raw)
		if err != nil {
			log.Errorf("Could not convert %s=%s to type %s", envName(name), raw, f.kind)
			return &ConfigTypeError{Field: name, Value: raw, Expected: string(f.kind), Err: err}
		}
		f.apply(cfg, v)
		if !f.secret {
			log.Infof("Overriding config value %s with env var %s=%s", name, envName(name), raw)
		}
	}
	return nil
}

func (c *Config) validate() error {
	positive := map[string]int{
		"frontend_port": c.FrontendPort,
		"backend_port":  c.BackendPort,
		"timeout":       c.Timeout,
	}
	for _, name := range []string{"frontend_port", "backend_port", "timeout"} {
		if positive[name] <= 0 {
			return &ValidationError{Field: name, Value: positive[name], Reason: "must be a positive integer"}
		}
	}
	return nil
}
