//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/kballard/go-shellquote"
)

// setProcessGroup starts the child in a new process group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the child's process group.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

func shellWrap(argv []string) []string {
	return []string{"sh", "-c", shellquote.Join(argv...)}
}

// setShellCmdLine is a no-op; sh receives the quoted line as a single argument.
func setShellCmdLine(cmd *exec.Cmd, argv []string) {}
