// Package command derives the argument vectors and environment additions used
// to launch the frontend toolchain and the backend application server.
package command

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/platform"
	"github.com/jeanhaley32/reflexctl/internal/process"
)

// Mode selects between the development and production topology.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// ParseMode parses "dev" or "prod".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDev, ModeProd:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected dev or prod)", s)
	}
}

// Role selects which process is being launched.
type Role string

const (
	RoleFrontend Role = "frontend"
	RoleBackend  Role = "backend"
)

// Request describes the process to build a command for. Zero values fall back
// to the configuration.
type Request struct {
	Mode     Mode
	Role     Role
	Host     string
	Port     int
	LogLevel config.LogLevel
}

// Command is a ready-to-spawn process description.
type Command struct {
	Argv  []string
	Env   map[string]string
	Dir   string
	Shell bool
}

// Spec converts the command into a process spec.
func (c Command) Spec() process.Spec {
	return process.Spec{Argv: c.Argv, Dir: c.Dir, Env: c.Env, Shell: c.Shell}
}

// Builder produces commands for the configured project.
type Builder struct {
	cfg            *config.Config
	os             platform.OS
	root           string
	packageManager string
	workers        func() int
}

// Option configures a Builder.
type Option func(*Builder)

// WithPlatform overrides the detected operating system.
func WithPlatform(os platform.OS) Option {
	return func(b *Builder) { b.os = os }
}

// WithRoot sets the project root directory.
func WithRoot(root string) Option {
	return func(b *Builder) { b.root = root }
}

// WithPackageManager sets the executable used to run frontend scripts.
func WithPackageManager(path string) Option {
	return func(b *Builder) { b.packageManager = path }
}

// WithWorkers overrides the worker count function.
func WithWorkers(fn func() int) Option {
	return func(b *Builder) { b.workers = fn }
}

// New creates a Builder for cfg.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:            cfg,
		os:             platform.Detect(),
		root:           ".",
		packageManager: "npm",
		workers:        NumWorkers,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Platform returns the operating system commands are built for.
func (b *Builder) Platform() platform.OS {
	return b.os
}

// Build returns the command for req.
func (b *Builder) Build(req Request) (Command, error) {
	v, ok := variants[variantKey{family: b.os.Family(), mode: req.Mode, role: req.Role}]
	if !ok {
		return Command{}, fmt.Errorf("no command for %s %s on %s", req.Mode, req.Role, b.os)
	}
	return v(b, req)
}

// Export returns the static export command, using the sitemap-aware script
// when sitemap is set.
func (b *Builder) Export(sitemap bool) Command {
	script := "export"
	if sitemap {
		script = "export-sitemap"
	}
	return b.frontendScript("run", script)
}

// DisableTelemetry returns the command that turns off the Next.js telemetry.
func (b *Builder) DisableTelemetry() Command {
	return b.frontendScript("run", "next", "telemetry", "disable")
}

func (b *Builder) frontendScript(args ...string) Command {
	return Command{
		Argv:  append([]string{b.packageManager}, args...),
		Env:   map[string]string{},
		Dir:   filepath.Join(b.root, constants.WebDir),
		Shell: b.os == platform.Windows,
	}
}

func (b *Builder) host(req Request) string {
	if req.Host != "" {
		return req.Host
	}
	return b.cfg.BackendHost
}

func (b *Builder) backendPort(req Request) string {
	if req.Port > 0 {
		return strconv.Itoa(req.Port)
	}
	return strconv.Itoa(b.cfg.BackendPort)
}

func logLevel(req Request) string {
	if req.LogLevel != "" {
		return string(req.LogLevel)
	}
	return string(config.LogLevelError)
}
