// Package run starts the long-lived frontend and backend processes of a
// project and reports where the app can be reached.
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jeanhaley32/reflexctl/internal/command"
	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/console"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/manifest"
	"github.com/jeanhaley32/reflexctl/internal/process"
	"github.com/jeanhaley32/reflexctl/internal/progress"
	"github.com/jeanhaley32/reflexctl/internal/watch"
)

var log = logging.Logger("run")

// Validator checks the frontend toolchain before anything is spawned.
type Validator interface {
	ValidateFrontend(ctx context.Context) error
}

// Orchestrator runs the processes of one project.
type Orchestrator struct {
	cfg       *config.Config
	builder   *command.Builder
	runner    process.Runner
	validator Validator
	root      string
	out       *console.Console
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRoot sets the project root directory.
func WithRoot(root string) Option {
	return func(o *Orchestrator) { o.root = root }
}

// WithConsole sets where user-facing output is written.
func WithConsole(c *console.Console) Option {
	return func(o *Orchestrator) { o.out = c }
}

// WithValidator sets the toolchain validator. Without one no validation is done.
func WithValidator(v Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// New creates an Orchestrator.
func New(cfg *config.Config, builder *command.Builder, runner process.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		builder: builder,
		runner:  runner,
		root:    ".",
		out:     console.New(os.Stdout),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunFrontend starts the frontend server and blocks until it exits or ctx is
// cancelled. In dev mode the asset watcher is running before the server is
// spawned. A port of zero uses the configured frontend port.
func (o *Orchestrator) RunFrontend(ctx context.Context, mode command.Mode, port int) error {
	if mode == command.ModeDev {
		if err := watch.New(o.root).Start(ctx); err != nil {
			return err
		}
	}

	if o.validator != nil {
		if err := o.validator.ValidateFrontend(ctx); err != nil {
			return err
		}
	}

	if err := manifest.SetEnvJSON(filepath.Join(o.root, constants.EnvJSON), o.cfg); err != nil {
		return err
	}

	cmd, err := o.builder.Build(command.Request{Mode: mode, Role: command.RoleFrontend, Port: port})
	if err != nil {
		return err
	}

	o.out.Rule("App Running")
	proc, err := o.runner.Start(ctx, cmd.Spec())
	if err != nil {
		return err
	}
	log.Infow("frontend started", "mode", mode, "pid", proc.Pid(), "port", cmd.Env[constants.PortEnvVar])

	for ev := range progress.New(nil).Observe(ctx, proc.Output()) {
		switch ev.Kind {
		case progress.EventLine:
			log.Debug(ev.Line)
		case progress.EventReady:
			o.out.URL("App running at:", ev.URL)
		}
	}

	if err := proc.Wait(); err != nil {
		return fmt.Errorf("frontend: %w", err)
	}
	return nil
}

// RunBackend starts the backend server and blocks until it exits or ctx is
// cancelled. The server's output is passed through to the console. Zero values
// for host and port use the configuration; an empty level uses "error".
func (o *Orchestrator) RunBackend(ctx context.Context, mode command.Mode, host string, port int, level config.LogLevel) error {
	cmd, err := o.builder.Build(command.Request{
		Mode:     mode,
		Role:     command.RoleBackend,
		Host:     host,
		Port:     port,
		LogLevel: level,
	})
	if err != nil {
		return err
	}

	log.Infow("starting backend", "mode", mode, "argv", cmd.Argv)
	if err := process.Run(ctx, o.runner, cmd.Spec(), o.out.Writer()); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	return nil
}

// AppOptions selects what RunApp starts.
type AppOptions struct {
	Mode         command.Mode
	Frontend     bool
	Backend      bool
	FrontendPort int
	BackendPort  int
	BackendHost  string
	LogLevel     config.LogLevel
}

// RunApp runs the requested processes together. The first one to fail stops
// the others and its error is returned.
func (o *Orchestrator) RunApp(ctx context.Context, opts AppOptions) error {
	g, ctx := errgroup.WithContext(ctx)
	if opts.Frontend {
		g.Go(func() error {
			return o.RunFrontend(ctx, opts.Mode, opts.FrontendPort)
		})
	}
	if opts.Backend {
		g.Go(func() error {
			return o.RunBackend(ctx, opts.Mode, opts.BackendHost, opts.BackendPort, opts.LogLevel)
		})
	}
	return g.Wait()
}
