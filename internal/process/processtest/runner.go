// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"io"
	"sync"

	"github.com/jeanhaley32/reflexctl/internal/process"
)

// Result scripts how a started process behaves.
type Result struct {
	// Output is written to the process output stream.
	Output string
	// Code is the exit status reported after Output is consumed.
	Code int
	// SpawnErr makes Start fail with a *process.SpawnError.
	SpawnErr error
	// UntilCancel keeps the process running until its context is cancelled.
	UntilCancel bool
}

// Runner records every started spec and answers with Respond.
type Runner struct {
	Respond func(spec process.Spec) Result

	mu    sync.Mutex
	specs []process.Spec
}

// Specs returns the specs started so far, in order.
func (r *Runner) Specs() []process.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Spec(nil), r.specs...)
}

func (r *Runner) Start(ctx context.Context, spec process.Spec) (process.Process, error) {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()

	var res Result
	if r.Respond != nil {
		res = r.Respond(spec)
	}
	if res.SpawnErr != nil {
		return nil, &process.SpawnError{Argv: spec.Argv, Err: res.SpawnErr}
	}

	pr, pw := io.Pipe()
	stop := context.AfterFunc(ctx, func() { pr.CloseWithError(ctx.Err()) })

	p := &proc{out: pr, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer stop()

		_, _ = io.WriteString(pw, res.Output)
		switch {
		case res.UntilCancel:
			<-ctx.Done()
			p.err = ctx.Err()
		case ctx.Err() != nil:
			p.err = ctx.Err()
		case res.Code != 0:
			p.err = &process.ExitError{Argv: spec.Argv, Code: res.Code}
		}
		pw.Close()
	}()
	return p, nil
}

type proc struct {
	out  io.Reader
	done chan struct{}
	err  error
}

func (p *proc) Output() io.Reader { return p.out }
func (p *proc) Pid() int          { return 0 }

func (p *proc) Wait() error {
	<-p.done
	return p.err
}
