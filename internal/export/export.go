// Package export produces a production build of the frontend and optionally
// packages the frontend and backend into deployable archives.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"

	"github.com/jeanhaley32/reflexctl/internal/command"
	"github.com/jeanhaley32/reflexctl/internal/config"
	"github.com/jeanhaley32/reflexctl/internal/console"
	"github.com/jeanhaley32/reflexctl/internal/constants"
	"github.com/jeanhaley32/reflexctl/internal/manifest"
	"github.com/jeanhaley32/reflexctl/internal/process"
	"github.com/jeanhaley32/reflexctl/internal/progress"
)

var log = logging.Logger("export")

// tailLines is how much build output a BuildError carries.
const tailLines = 20

// State is a step of an export.
type State string

const (
	StateIdle          State = "idle"
	StateCleaning      State = "cleaning-static-output"
	StateSitemap       State = "sitemap-generation"
	StateFrontendBuild State = "frontend-build"
	StateZipFrontend   State = "zip-frontend"
	StateZipBackend    State = "zip-backend"
	StateDone          State = "done"
)

// Component names an archive.
type Component string

const (
	Frontend Component = "Frontend"
	Backend  Component = "Backend"
)

// Options selects what an export produces.
type Options struct {
	Backend  bool
	Frontend bool
	Zip      bool

	// DeployURL enables sitemap generation when non-empty.
	DeployURL string
}

// Result describes a finished export.
type Result struct {
	Sitemap  bool
	Archives []string
}

// Pipeline runs exports for one project. A Pipeline owns the static output
// directory while Export runs and must not be used concurrently.
type Pipeline struct {
	cfg     *config.Config
	builder *command.Builder
	runner  process.Runner
	root    string
	out     *console.Console
	state   State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRoot sets the project root directory.
func WithRoot(root string) Option {
	return func(p *Pipeline) { p.root = root }
}

// WithConsole sets where user-facing output is written.
func WithConsole(c *console.Console) Option {
	return func(p *Pipeline) { p.out = c }
}

// New creates a Pipeline.
func New(cfg *config.Config, builder *command.Builder, runner process.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		builder: builder,
		runner:  runner,
		root:    ".",
		out:     console.New(os.Stdout),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the step the pipeline is in.
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) enter(s State) {
	log.Debugw("export state", "from", p.state, "to", s)
	p.state = s
}

func (p *Pipeline) path(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

// Export cleans the static output, builds the frontend when requested and
// packages the requested components. A failed build returns *BuildError and
// skips packaging. Packaging failures of each component are collected and
// returned together.
func (p *Pipeline) Export(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{}
	p.state = StateIdle

	p.enter(StateCleaning)
	if err := p.CleanStatic(); err != nil {
		return nil, err
	}

	if opts.Frontend {
		if opts.DeployURL != "" {
			p.enter(StateSitemap)
			if err := manifest.WriteSitemapConfig(p.path(constants.SitemapConfigFile), opts.DeployURL); err != nil {
				return nil, err
			}
			res.Sitemap = true
		}

		p.enter(StateFrontendBuild)
		if err := p.build(ctx, p.builder.Export(res.Sitemap)); err != nil {
			return nil, err
		}
	}

	if opts.Zip {
		var errs error
		if opts.Frontend {
			p.enter(StateZipFrontend)
			target, err := p.zip(ctx, Frontend, constants.FrontendZip, p.path(constants.WebStaticDir), nil)
			if err != nil {
				errs = multierror.Append(errs, err)
			} else {
				res.Archives = append(res.Archives, target)
			}
		}
		if opts.Backend {
			p.enter(StateZipBackend)
			excludeDirs := mapset.NewThreadUnsafeSet(constants.AppAssetsDir, "__pycache__")
			target, err := p.zip(ctx, Backend, constants.BackendZip, p.root, excludeDirs)
			if err != nil {
				errs = multierror.Append(errs, err)
			} else {
				res.Archives = append(res.Archives, target)
			}
		}
		if errs != nil {
			return res, errs
		}
	}

	p.enter(StateDone)
	return res, nil
}

// CleanStatic removes the previous static output. A missing directory is not
// an error.
func (p *Pipeline) CleanStatic() error {
	if err := os.RemoveAll(p.path(constants.WebStaticDir)); err != nil {
		return fmt.Errorf("failed to remove static output: %w", err)
	}
	return nil
}

func (p *Pipeline) build(ctx context.Context, cmd command.Command) error {
	proc, err := p.runner.Start(ctx, cmd.Spec())
	if err != nil {
		return err
	}

	checkpoints := progress.BuildCheckpoints
	bar := p.out.ProgressBar(len(checkpoints), "Creating Production Build")
	tail := progress.NewTail(tailLines)

	for ev := range progress.New(checkpoints).Observe(ctx, proc.Output()) {
		switch ev.Kind {
		case progress.EventLine:
			tail.Add(ev.Line)
			log.Debug(ev.Line)
		case progress.EventMilestone:
			_ = bar.Set(ev.Index)
		}
	}

	err = proc.Wait()
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		_ = bar.Exit()
		return &BuildError{Command: cmd.Argv, Code: exitErr.Code, Tail: tail.Lines()}
	}
	if err != nil {
		_ = bar.Exit()
		return err
	}
	_ = bar.Finish()
	return nil
}

func (p *Pipeline) zip(ctx context.Context, component Component, name, root string, excludeDirs mapset.Set[string]) (string, error) {
	target := p.path(name)
	files, err := Manifest(root, excludeDirs, archiveExcludes())
	if err != nil {
		return "", fmt.Errorf("%s archive: %w", component, err)
	}

	bar := p.out.ProgressBar(len(files), fmt.Sprintf("Zipping %s:", component))
	err = writeArchive(ctx, target, root, files, func() { _ = bar.Add(1) })
	if err != nil {
		_ = bar.Exit()
		return "", fmt.Errorf("%s archive: %w", component, err)
	}
	_ = bar.Finish()
	return target, nil
}
