package run

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/reflexctl/internal/command"
	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/console"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/manifest"
	"github.com/jeanhaley32/reflexctl/internal/platform"
	"github.com/jeanhaley32/reflexctl/internal/process"
	"github.com/jeanhaley32/reflexctl/internal/process/processtest"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type validatorFunc func(ctx context.Context) error

func (f validatorFunc) ValidateFrontend(ctx context.Context) error { return f(ctx) }

func newOrchestrator(t *testing.T, root string, runner process.Runner, out *syncBuffer, opts ...Option) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.AppName = "app"
	builder := command.New(&cfg,
		command.WithRoot(root),
		command.WithPlatform(platform.Linux),
		command.WithPackageManager("npm"),
		command.WithWorkers(func() int { return 3 }),
	)
	opts = append([]Option{WithRoot(root), WithConsole(console.New(out))}, opts...)
	return New(&cfg, builder, runner, opts...)
}

func roleOf(spec process.Spec) command.Role {
	if spec.Argv[0] == "npm" {
		return command.RoleFrontend
	}
	return command.RoleBackend
}

func TestRunFrontend_PrintsReadyURL(t *testing.T) {
	root := t.TempDir()
	var out syncBuffer
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{Output: "info - Loaded env\nready started server on 0.0.0.0:3001, url: http://localhost:3001\n"}
	}}

	err := newOrchestrator(t, root, runner, &out).RunFrontend(context.Background(), command.ModeDev, 3001)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "App Running")
	assert.Contains(t, out.String(), "App running at: http://localhost:3001")

	specs := runner.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, []string{"npm", "run", "dev"}, specs[0].Argv)
	assert.Equal(t, "3001", specs[0].Env[constants.PortEnvVar])

	env, err := manifest.ReadJSONFile(filepath.Join(root, constants.EnvJSON))
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/event", env["eventUrl"])
}

func TestRunFrontend_ProdUsesConfiguredPort(t *testing.T) {
	var out syncBuffer
	runner := &processtest.Runner{}

	require.NoError(t, newOrchestrator(t, t.TempDir(), runner, &out).RunFrontend(context.Background(), command.ModeProd, 0))

	spec := runner.Specs()[0]
	assert.Equal(t, []string{"npm", "run", "prod"}, spec.Argv)
	assert.Equal(t, "3000", spec.Env[constants.PortEnvVar])
	assert.NotContains(t, out.String(), "App running at:")
}

func TestRunFrontend_ValidationFailsBeforeSpawn(t *testing.T) {
	var out syncBuffer
	runner := &processtest.Runner{}
	want := errors.New("node missing")

	o := newOrchestrator(t, t.TempDir(), runner, &out, WithValidator(validatorFunc(func(context.Context) error { return want })))
	err := o.RunFrontend(context.Background(), command.ModeDev, 0)

	assert.ErrorIs(t, err, want)
	assert.Empty(t, runner.Specs())
}

func TestRunFrontend_WatchesAssetsWhileRunning(t *testing.T) {
	root := t.TempDir()
	assets := filepath.Join(root, constants.AppAssetsDir)
	require.NoError(t, os.MkdirAll(assets, 0755))

	var out syncBuffer
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		// The watcher is registered before spawn, so this write is mirrored.
		_ = os.WriteFile(filepath.Join(assets, "early.txt"), []byte("early"), 0644)
		return processtest.Result{UntilCancel: true}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newOrchestrator(t, root, runner, &out).RunFrontend(ctx, command.ModeDev, 0) }()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(root, constants.WebPublicDir, "early.txt"))
		return err == nil && string(data) == "early"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("frontend did not stop after cancel")
	}
}

func TestRunBackend_PassesOutputThrough(t *testing.T) {
	var out syncBuffer
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{Output: "INFO:     Uvicorn running on http://0.0.0.0:8000\n"}
	}}

	err := newOrchestrator(t, t.TempDir(), runner, &out).RunBackend(context.Background(), command.ModeDev, "127.0.0.1", 8001, config.LogLevelDebug)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Uvicorn running")

	argv := runner.Specs()[0].Argv
	assert.Equal(t, "uvicorn", argv[0])
	assert.Contains(t, argv, "127.0.0.1")
	assert.Contains(t, argv, "8001")
}

func TestRunBackend_FailureIsReturned(t *testing.T) {
	var out syncBuffer
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{Output: "ModuleNotFoundError\n", Code: 1}
	}}

	err := newOrchestrator(t, t.TempDir(), runner, &out).RunBackend(context.Background(), command.ModeProd, "", 0, "")

	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Len(t, runner.Specs(), 1)
}

func TestRunBackend_SpawnError(t *testing.T) {
	var out syncBuffer
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{SpawnErr: errors.New("gunicorn: not found")}
	}}

	err := newOrchestrator(t, t.TempDir(), runner, &out).RunBackend(context.Background(), command.ModeProd, "", 0, "")

	var spawnErr *process.SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestRunApp_BackendFailureStopsFrontend(t *testing.T) {
	var out syncBuffer
	runner := &processtest.Runner{Respond: func(spec process.Spec) processtest.Result {
		if roleOf(spec) == command.RoleFrontend {
			return processtest.Result{UntilCancel: true}
		}
		return processtest.Result{Code: 3}
	}}

	err := newOrchestrator(t, t.TempDir(), runner, &out).RunApp(context.Background(), AppOptions{
		Mode:     command.ModeDev,
		Frontend: true,
		Backend:  true,
	})

	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Len(t, runner.Specs(), 2)
}

func TestRunApp_Cancel(t *testing.T) {
	var out syncBuffer
	runner := &processtest.Runner{Respond: func(process.Spec) processtest.Result {
		return processtest.Result{Output: "ready started server on http://localhost:3000\n", UntilCancel: true}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newOrchestrator(t, t.TempDir(), runner, &out).RunApp(ctx, AppOptions{
			Mode:     command.ModeDev,
			Frontend: true,
			Backend:  true,
		})
	}()

	require.Eventually(t, func() bool { return len(runner.Specs()) == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}
