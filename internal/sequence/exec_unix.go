//go:build unix

package sequence

import (
	"os"
	"os/exec"
	"syscall"
)

const canReplaceProcess = true

// forwardedSignals are relayed to a supervised server. SIGTERM is what
// container runtimes send on stop; SIGHUP and SIGQUIT are meaningful to
// gunicorn (reload and quick shutdown).
var forwardedSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

var terminateSignal os.Signal = syscall.SIGTERM

func replaceProcess(path string, argv []string, env []string) error {
	return syscall.Exec(path, argv, env)
}

// exitStatus reports the shell-style status of a finished process:
// its exit code, or 128+N when it was killed by signal N.
func exitStatus(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}
