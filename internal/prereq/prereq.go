// Package prereq locates the frontend toolchain and checks that it meets the
// minimum supported versions.
package prereq

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/shirou/gopsutil/v4/host"
	"golang.org/x/mod/semver"

	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/platform"
	"github.com/jeanhaley32/reflexctl/internal/process"
)

var log = logging.Logger("prereq")

const versionTimeout = 10 * time.Second

// DependencyError reports a missing or outdated toolchain dependency.
type DependencyError struct {
	Name  string
	Path  string
	Found string
	Want  string
	Err   error
}

func (e *DependencyError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s is not usable: %v", e.Name, e.Err)
	case e.Found == "":
		return fmt.Sprintf("%s not found; version %s or higher is required", e.Name, e.Want)
	default:
		return fmt.Sprintf("%s version %s at %s is too old; version %s or higher is required", e.Name, e.Found, e.Path, e.Want)
	}
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// Checker locates and validates toolchain binaries.
type Checker struct {
	os        platform.OS
	bunPath   string
	lookPath  func(string) (string, error)
	versionOf func(ctx context.Context, path string) (string, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithPlatform overrides the detected platform.
func WithPlatform(os platform.OS) Option {
	return func(c *Checker) { c.os = os }
}

// WithLookPath overrides executable lookup on PATH.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Checker) { c.lookPath = fn }
}

// WithVersionCommand overrides how a binary's version string is obtained.
func WithVersionCommand(fn func(ctx context.Context, path string) (string, error)) Option {
	return func(c *Checker) { c.versionOf = fn }
}

// New creates a Checker for cfg.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		os:        platform.Detect(),
		bunPath:   cfg.BunPath,
		lookPath:  exec.LookPath,
		versionOf: versionOutput,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func versionOutput(ctx context.Context, path string) (string, error) {
	out, err := process.Output(ctx, versionTimeout, path, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// PackageManager returns the path of the binary used to run frontend scripts.
func (c *Checker) PackageManager() (string, error) {
	path, err := c.lookPath("npm")
	if err != nil {
		return "", &DependencyError{Name: "npm", Err: err}
	}
	return path, nil
}

// InstallManager returns the path of the binary used to install frontend
// packages: bun everywhere but Windows, where npm is used.
func (c *Checker) InstallManager() (string, error) {
	if c.os.IsWindows() {
		return c.PackageManager()
	}
	if _, err := os.Stat(c.bunPath); err != nil {
		return "", &DependencyError{Name: "bun", Path: c.bunPath, Want: constants.MinBunVersion, Err: err}
	}
	return c.bunPath, nil
}

// NodeVersion returns the installed node version in semver form and the path
// of the node binary.
func (c *Checker) NodeVersion(ctx context.Context) (string, string, error) {
	path, err := c.lookPath("node")
	if err != nil {
		return "", "", &DependencyError{Name: "node", Want: constants.MinNodeVersion}
	}
	v, err := c.version(ctx, "node", path)
	return v, path, err
}

// BunVersion returns the installed bun version in semver form.
func (c *Checker) BunVersion(ctx context.Context) (string, error) {
	if _, err := os.Stat(c.bunPath); err != nil {
		return "", &DependencyError{Name: "bun", Path: c.bunPath, Want: constants.MinBunVersion}
	}
	return c.version(ctx, "bun", c.bunPath)
}

func (c *Checker) version(ctx context.Context, name, path string) (string, error) {
	out, err := c.versionOf(ctx, path)
	if err != nil {
		return "", &DependencyError{Name: name, Path: path, Err: err}
	}
	v := Canonical(out)
	if v == "" {
		return "", &DependencyError{Name: name, Path: path, Err: fmt.Errorf("unrecognised version %q", out)}
	}
	return v, nil
}

// Canonical turns a version string such as "18.17.0" or "v0.7.3" into the
// "vMAJOR.MINOR.PATCH" form, or returns "" if it is not a version.
func Canonical(s string) string {
	s = strings.TrimSpace(s)
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[len(fields)-1]
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return semver.Canonical(s)
}

// AtLeast reports whether version is at least min. Both may omit the leading "v".
func AtLeast(version, min string) bool {
	v, m := Canonical(version), Canonical(min)
	if v == "" || m == "" {
		return false
	}
	return semver.Compare(v, m) >= 0
}

// ValidateFrontend checks that node, and bun outside Windows, are installed at
// supported versions and that a package manager is on PATH.
func (c *Checker) ValidateFrontend(ctx context.Context) error {
	node, path, err := c.NodeVersion(ctx)
	if err != nil {
		return err
	}
	if !AtLeast(node, constants.MinNodeVersion) {
		return &DependencyError{Name: "node", Path: path, Found: node, Want: constants.MinNodeVersion}
	}

	if !c.os.IsWindows() {
		bun, err := c.BunVersion(ctx)
		if err != nil {
			return err
		}
		if !AtLeast(bun, constants.MinBunVersion) {
			return &DependencyError{Name: "bun", Path: c.bunPath, Found: bun, Want: constants.MinBunVersion}
		}
	}

	if _, err := c.PackageManager(); err != nil {
		return err
	}
	log.Debugw("frontend dependencies validated", "node", node)
	return nil
}

// SystemInfo describes the toolchain and host for debug output. Lookup
// failures are reported inline rather than returned.
func (c *Checker) SystemInfo(ctx context.Context) []string {
	var lines []string

	node, path, err := c.NodeVersion(ctx)
	lines = append(lines, describe("Node", node, constants.MinNodeVersion, path, err))

	if !c.os.IsWindows() {
		bun, err := c.BunVersion(ctx)
		lines = append(lines, describe("Bun", bun, constants.MinBunVersion, c.bunPath, err))
	}

	osLine := fmt.Sprintf("[OS %s]", c.os)
	if info, err := host.InfoWithContext(ctx); err == nil {
		osLine = fmt.Sprintf("[OS %s %s %s]", c.os, info.Platform, info.PlatformVersion)
	}
	lines = append(lines, osLine)

	if pm, err := c.PackageManager(); err == nil {
		lines = append(lines, fmt.Sprintf("Using package executer at: %s", pm))
	}
	if im, err := c.InstallManager(); err == nil {
		lines = append(lines, fmt.Sprintf("Using package installer at: %s", im))
	}
	return lines
}

func describe(name, version, want, path string, err error) string {
	if err != nil {
		version = "not found"
	}
	return fmt.Sprintf("[%s %s (Expected: %s) (PATH: %s)]", name, version, want, path)
}
