package prereq

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/platform"
)

type toolchain struct {
	paths    map[string]string
	versions map[string]string
}

func (tc toolchain) lookPath(name string) (string, error) {
	if p, ok := tc.paths[name]; ok {
		return p, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (tc toolchain) version(_ context.Context, path string) (string, error) {
	if v, ok := tc.versions[path]; ok {
		return v, nil
	}
	return "", errors.New("version check failed")
}

func newChecker(t *testing.T, os platform.OS, nodeVersion, bunVersion string) *Checker {
	t.Helper()
	bun := filepath.Join(t.TempDir(), "bun")
	require.NoError(t, writeExecutable(bun))

	cfg := config.Default()
	cfg.BunPath = bun
	tc := toolchain{
		paths:    map[string]string{"node": "/usr/bin/node", "npm": "/usr/bin/npm"},
		versions: map[string]string{"/usr/bin/node": nodeVersion, bun: bunVersion},
	}
	return New(&cfg, WithPlatform(os), WithLookPath(tc.lookPath), WithVersionCommand(tc.version))
}

func writeExecutable(path string) error {
	return os.WriteFile(path, []byte("#!/bin/sh\n"), 0755)
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"v18.17.0", "v18.17.0"},
		{"18.17.0\n", "v18.17.0"},
		{"1.0.3", "v1.0.3"},
		{"16.8", "v16.8.0"},
		{"bun 0.7.0", "v0.7.0"},
		{"garbage", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast("v18.0.0", "16.8.0"))
	assert.True(t, AtLeast("16.8.0", "16.8.0"))
	assert.False(t, AtLeast("16.7.9", "16.8.0"))
	assert.False(t, AtLeast("", "16.8.0"))
}

func TestValidateFrontend_OK(t *testing.T) {
	c := newChecker(t, platform.Linux, "v18.17.0", "1.0.0")
	require.NoError(t, c.ValidateFrontend(context.Background()))
}

func TestValidateFrontend_OldNode(t *testing.T) {
	c := newChecker(t, platform.Linux, "v14.0.0", "1.0.0")
	err := c.ValidateFrontend(context.Background())

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "node", depErr.Name)
	assert.Equal(t, "v14.0.0", depErr.Found)
	assert.Equal(t, "16.8.0", depErr.Want)
}

func TestValidateFrontend_OldBun(t *testing.T) {
	c := newChecker(t, platform.MacOS, "v18.17.0", "0.6.9")
	err := c.ValidateFrontend(context.Background())

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "bun", depErr.Name)
}

func TestValidateFrontend_WindowsSkipsBun(t *testing.T) {
	c := newChecker(t, platform.Windows, "v18.17.0", "0.1.0")
	require.NoError(t, c.ValidateFrontend(context.Background()))

	im, err := c.InstallManager()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/npm", im)
}

func TestValidateFrontend_MissingNode(t *testing.T) {
	c := newChecker(t, platform.Linux, "v18.17.0", "1.0.0")
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	var depErr *DependencyError
	require.ErrorAs(t, c.ValidateFrontend(context.Background()), &depErr)
	assert.Equal(t, "node", depErr.Name)
	assert.Contains(t, depErr.Error(), "not found")
}

func TestSystemInfo(t *testing.T) {
	c := newChecker(t, platform.Linux, "v18.17.0", "1.0.0")
	lines := c.SystemInfo(context.Background())

	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "[Node v18.17.0 (Expected: 16.8.0)")
	assert.Contains(t, lines[1], "[Bun v1.0.0")
}
