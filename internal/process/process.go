// Package process spawns external toolchain processes and exposes their merged
// output as a line stream.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("process")

// Grace period between the termination signal and a forced kill.
const gracePeriod = 5 * time.Second

// Spec describes a process to start.
type Spec struct {
	Argv  []string
	Dir   string
	Env   map[string]string
	Shell bool
}

func (s Spec) String() string {
	return strings.Join(s.Argv, " ")
}

// Process is a running child.
type Process interface {
	// Output is the merged stdout/stderr stream. It must be drained for the
	// process to make progress; it reaches EOF once the process exits.
	Output() io.Reader

	// Wait blocks until the process exits. A non-zero exit is reported as
	// *ExitError; a cancelled context as the context error.
	Wait() error

	// Pid returns the OS process id.
	Pid() int
}

// Runner starts processes.
type Runner interface {
	Start(ctx context.Context, spec Spec) (Process, error)
}

// SpawnError is returned when a process could not be created.
type SpawnError struct {
	Argv []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError is returned when a process exits with a non-zero status.
type ExitError struct {
	Argv []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%q exited with status %d", strings.Join(e.Argv, " "), e.Code)
}

// ExecRunner implements Runner with os/exec. Children are placed in their own
// process group so cancelling the context terminates the whole tree.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Start(ctx context.Context, spec Spec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, &SpawnError{Err: errors.New("command is required")}
	}

	argv := spec.Argv
	if spec.Shell {
		argv = shellWrap(argv)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = spec.Dir

	// Inherit the host environment; later entries win on duplicate keys.
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	setProcessGroup(cmd)
	if spec.Shell {
		setShellCmdLine(cmd, spec.Argv)
	}
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = gracePeriod

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, &SpawnError{Argv: spec.Argv, Err: err}
	}
	log.Debugw("started process", "pid", cmd.Process.Pid, "argv", spec.Argv, "dir", spec.Dir)

	p := &execProcess{cmd: cmd, argv: spec.Argv, out: pr, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		pw.Close()
		p.err = classify(ctx, spec.Argv, err)
		log.Debugw("process exited", "pid", cmd.Process.Pid, "err", p.err)
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	argv []string
	out  io.Reader
	done chan struct{}
	err  error
}

func (p *execProcess) Output() io.Reader { return p.out }
func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }

func (p *execProcess) Wait() error {
	<-p.done
	return p.err
}

func classify(ctx context.Context, argv []string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Argv: argv, Code: exitErr.ExitCode()}
	}
	return err
}

// Run starts spec, copies its output to w and waits for it to exit.
func Run(ctx context.Context, r Runner, spec Spec, w io.Writer) error {
	p, err := r.Start(ctx, spec)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, p.Output()); err != nil {
		log.Warnf("copying output of %s: %s", spec, err)
	}
	return p.Wait()
}

// Output runs a short-lived command and returns its stdout, failing if it does
// not finish within timeout.
func Output(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %v", timeout)
	}
	return output, err
}
