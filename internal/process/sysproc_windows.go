//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// terminate kills the child together with its descendants. Windows has no
// process-group signal, so the tree is taken down with taskkill; if that
// cannot run, only the child is killed.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	args := killTreeArgs(cmd.Process.Pid)
	if err := exec.Command(args[0], args[1:]...).Run(); err != nil {
		log.Debugf("taskkill of pid %d failed: %s", cmd.Process.Pid, err)
		return cmd.Process.Kill()
	}
	return nil
}

func shellWrap(argv []string) []string {
	return []string{"cmd", "/S", "/C", cmdQuote(argv)}
}

// setShellCmdLine hands cmd.exe the pre-quoted command line directly, since
// the default argument escaping does not follow cmd's quoting rules.
func setShellCmdLine(cmd *exec.Cmd, argv []string) {
	cmd.SysProcAttr.CmdLine = shellCmdLine(argv)
}
