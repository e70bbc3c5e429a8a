package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/jeanhaley32/reflexctl/internal/constants"
)

var log = logging.Logger("config")

// LogLevel is the verbosity used by the app and the spawned servers.
type LogLevel string

const (
	LogLevelDebug    LogLevel = "debug"
	LogLevelInfo     LogLevel = "info"
	LogLevelWarning  LogLevel = "warning"
	LogLevelError    LogLevel = "error"
	LogLevelCritical LogLevel = "critical"
)

// LogLevels lists the accepted levels in increasing severity.
var LogLevels = []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelCritical}

// ParseLogLevel parses a level name case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	lvl := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range LogLevels {
		if l == lvl {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Config is the effective run configuration of a project. It is resolved once
// per process and treated as read-only afterwards.
type Config struct {
	AppName            string
	LogLevel           LogLevel
	FrontendPort       int
	BackendPort        int
	APIURL             string
	DeployURL          string
	BackendHost        string
	DBURL              string
	RedisURL           string
	TelemetryEnabled   bool
	BunPath            string
	CORSAllowedOrigins []string
	Tailwind           map[string]any
	Timeout            int
	NextCompression    bool
	EventNamespace     string
	FrontendPackages   []string
	RxDeployURL        string
	Username           string

	// source is the file the config was loaded from, empty when defaulted.
	source string
}

// Default returns the configuration with every field at its declared default.
// The app name is left empty.
func Default() Config {
	return Config{
		LogLevel:           LogLevelInfo,
		FrontendPort:       3000,
		BackendPort:        8000,
		APIURL:             "http://localhost:8000",
		DeployURL:          "http://localhost:3000",
		BackendHost:        "0.0.0.0",
		DBURL:              "sqlite:///reflex.db",
		TelemetryEnabled:   true,
		BunPath:            defaultBunPath(),
		CORSAllowedOrigins: []string{"*"},
		Timeout:            120,
		NextCompression:    true,
		FrontendPackages:   []string{},
	}
}

func defaultBunPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", constants.BunDefaultDir, "bun")
	}
	return filepath.Join(home, constants.BunDefaultDir, "bun")
}

// Source returns the path of the file this config was loaded from.
func (c *Config) Source() string {
	return c.source
}

// Found reports whether the config came from a project configuration file.
func (c *Config) Found() bool {
	return c.source != ""
}

// RequireAppName fails when the config has no usable app name, which is the
// case for the placeholder returned outside of a project.
func (c *Config) RequireAppName() error {
	if strings.TrimSpace(c.AppName) == "" {
		return &ValidationError{
			Field:  "app_name",
			Reason: "no app name configured; run this command from a project directory containing " + constants.ConfigModule + ".toml",
		}
	}
	return nil
}

// AppModule returns the import reference of the application object.
func (c *Config) AppModule() string {
	return fmt.Sprintf("%s.%s:%s", c.AppName, c.AppName, constants.AppVar)
}

// APIModule returns the import reference of the ASGI api served by the backend.
func (c *Config) APIModule() string {
	return c.AppModule() + "." + constants.APIVar
}

// EventPath returns the websocket event namespace. An explicit namespace is
// normalised to a single leading slash and no trailing slash; otherwise the
// path of the event endpoint is used.
func (c *Config) EventPath() string {
	if c.EventNamespace != "" {
		return "/" + strings.Trim(c.EventNamespace, "/")
	}
	u, err := url.Parse(EndpointEvent.URL(c))
	if err != nil {
		return "/" + string(EndpointEvent)
	}
	return u.Path
}

// Endpoint is a backend route the frontend talks to.
type Endpoint string

const (
	EndpointPing   Endpoint = "ping"
	EndpointEvent  Endpoint = "event"
	EndpointUpload Endpoint = "upload"
)

// URL returns the absolute URL of the endpoint for the given config. The event
// endpoint uses the websocket scheme.
func (e Endpoint) URL(c *Config) string {
	u := strings.TrimRight(c.APIURL, "/") + "/" + string(e)
	if e == EndpointEvent {
		u = strings.Replace(u, "http", "ws", 1)
	}
	return u
}
