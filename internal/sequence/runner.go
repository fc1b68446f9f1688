package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shinji-kodama/webstart/internal/model"
)

// HandoffMode selects how the final step takes over.
type HandoffMode int

const (
	// HandoffExec replaces the webstart process image with the server.
	// The server inherits the PID, so the container runtime's signals and
	// exit status apply to it directly.
	HandoffExec HandoffMode = iota

	// HandoffSupervise runs the server as a child, forwards termination
	// signals to it and returns its exit status.
	HandoffSupervise
)

// String returns the flag-style name of the mode.
func (m HandoffMode) String() string {
	switch m {
	case HandoffExec:
		return "exec"
	case HandoffSupervise:
		return "supervise"
	default:
		return fmt.Sprintf("HandoffMode(%d)", int(m))
	}
}

// DefaultHandoffMode returns HandoffExec where the platform can replace
// the running process, HandoffSupervise otherwise.
func DefaultHandoffMode() HandoffMode {
	if canReplaceProcess {
		return HandoffExec
	}
	return HandoffSupervise
}

// ExecRunner runs steps as operating system processes via os/exec.
//
// Standard streams are passed through so collaborators print their own
// diagnostics. In HandoffExec mode the streams are the process's own file
// descriptors regardless of the Stdin/Stdout/Stderr fields.
type ExecRunner struct {
	Mode   HandoffMode
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	log zerolog.Logger

	// lookPath and replace are swapped out in tests so HandoffExec can be
	// exercised without replacing the test binary.
	lookPath func(file string) (string, error)
	replace  func(path string, argv []string, env []string) error
}

// NewExecRunner returns an ExecRunner wired to the process's standard
// streams.
func NewExecRunner(mode HandoffMode, log zerolog.Logger) *ExecRunner {
	return &ExecRunner{
		Mode:     mode,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		log:      log,
		lookPath: exec.LookPath,
		replace:  replaceProcess,
	}
}

// Run executes step and waits for it to exit. Cancelling ctx kills the
// process.
func (r *ExecRunner) Run(ctx context.Context, step model.Step) error {
	// #nosec G204: program and args come from the startup plan.
	cmd := exec.CommandContext(ctx, step.Program, step.Args...)
	r.configure(cmd, step)
	return classify(step, cmd.Run())
}

// Handoff transfers control to step according to r.Mode.
func (r *ExecRunner) Handoff(ctx context.Context, step model.Step) error {
	if r.Mode == HandoffExec && canReplaceProcess {
		return r.replaceSelf(step)
	}
	return r.supervise(ctx, step)
}

// configure applies the step's working directory, environment and the
// runner's standard streams to cmd.
func (r *ExecRunner) configure(cmd *exec.Cmd, step model.Step) {
	cmd.Dir = step.Dir
	cmd.Env = mergeEnv(os.Environ(), step.Env)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
}

// replaceSelf replaces the current process with step. It only returns on
// error, and then the original working directory is restored.
func (r *ExecRunner) replaceSelf(step model.Step) error {
	path, err := r.lookPath(step.ProgramPath())
	if err != nil {
		return classify(step, err)
	}
	// The working directory changes below, so a relative result must be
	// pinned first.
	if path, err = filepath.Abs(path); err != nil {
		return classify(step, err)
	}

	if step.Dir != "" {
		prev, err := os.Getwd()
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to determine working directory", err)
		}
		if err := os.Chdir(step.Dir); err != nil {
			return model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("failed to enter working directory %q", step.Dir),
				err,
			)
		}
		defer func() { _ = os.Chdir(prev) }()
	}

	r.log.Debug().Str("path", path).Msg("replacing process")
	return classify(step, r.replace(path, step.Argv(), mergeEnv(os.Environ(), step.Env)))
}

// supervise starts step as a child, forwards termination signals to it and
// waits for it to exit. Cancelling ctx sends the child terminateSignal.
func (r *ExecRunner) supervise(ctx context.Context, step model.Step) error {
	// The server is not bound to ctx: it is stopped with a signal so it can
	// shut its workers down gracefully.
	// #nosec G204: program and args come from the startup plan.
	cmd := exec.Command(step.Program, step.Args...)
	r.configure(cmd, step)

	// Registered before Start so a stop signal arriving during start-up is
	// queued for the child instead of terminating webstart.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, forwardedSignals...)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return classify(step, err)
	}
	r.log.Debug().Int("pid", cmd.Process.Pid).Msg("supervising collaborator")

	exited := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		defer close(exited)
		return cmd.Wait()
	})
	g.Go(func() error {
		done := ctx.Done()
		for {
			select {
			case sig := <-sigs:
				r.log.Debug().Str("signal", sig.String()).Msg("forwarding signal")
				_ = cmd.Process.Signal(sig)
			case <-done:
				r.log.Debug().Msg("context cancelled, terminating collaborator")
				_ = cmd.Process.Signal(terminateSignal)
				done = nil
			case <-exited:
				return nil
			}
		}
	})

	return classify(step, g.Wait())
}

// classify maps a process error to the error taxonomy of the CLI:
// a collaborator that ran and failed becomes *model.StepError carrying its
// exit status; a collaborator that could not be started becomes a
// *model.CLIError using the shell's 127/126 conventions.
func classify(step model.Step, err error) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &model.StepError{Kind: step.Kind, Code: exitStatus(exitErr), Err: err}
	}

	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return model.WrapCLIError(
			model.ExitCommandNotFound,
			fmt.Sprintf("%s: %s: command not found", step.Kind, step.Program),
			err,
		)
	case errors.Is(err, fs.ErrPermission):
		return model.WrapCLIError(
			model.ExitNotExecutable,
			fmt.Sprintf("%s: %s: permission denied", step.Kind, step.Program),
			err,
		)
	default:
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("%s: failed to run %s", step.Kind, step.Program),
			err,
		)
	}
}

// mergeEnv returns base with extra applied. A key present in both keeps
// its position from base and takes the value from extra; new keys are
// appended in sorted order. Keys are matched case-sensitively.
func mergeEnv(base []string, extra map[string]string) []string {
	out := make([]string, 0, len(base)+len(extra))
	applied := make(map[string]bool, len(extra))

	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if v, ok := extra[key]; ok {
			if applied[key] {
				continue
			}
			out = append(out, key+"="+v)
			applied[key] = true
			continue
		}
		out = append(out, kv)
	}

	step := model.Step{Env: extra}
	for _, kv := range step.EnvList() {
		key := kv[:strings.IndexByte(kv, '=')]
		if !applied[key] {
			out = append(out, kv)
		}
	}
	return out
}
