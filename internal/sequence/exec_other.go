//go:build !unix

package sequence

import (
	"errors"
	"os"
	"os/exec"
)

const canReplaceProcess = false

var forwardedSignals = []os.Signal{os.Interrupt}

var terminateSignal = os.Kill

func replaceProcess(string, []string, []string) error {
	return errors.New("replacing the running process is not supported on this platform")
}

func exitStatus(err *exec.ExitError) int {
	if code := err.ExitCode(); code >= 0 {
		return code
	}
	return 1
}
