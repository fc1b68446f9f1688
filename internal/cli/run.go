// Package cli: run.go implements "webstart run" and "webstart step".
//
// run executes the whole startup sequence; it is also what the bare
// "webstart" command does. step executes a single collaborator, which is
// useful for running migrations by hand from a shell inside the container.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/webstart/internal/model"
	"github.com/shinji-kodama/webstart/internal/sequence"
)

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	var noExec bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Migrate, collect static files, then start the server",
		Long: `Run the startup sequence: migrate, collectstatic, serve.

The sequence stops at the first step that exits non-zero and webstart exits
with that step's status. The server is started with the fixed settings
--bind=0.0.0.0:8000 --workers=2 --timeout=120.

Examples:
  webstart run
  webstart run --config deploy/webstart.yaml
  webstart run --no-exec`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequence(cmd, handoffMode(noExec), "")
		},
	}
	addNoExecFlag(cmd, &noExec)

	return cmd
}

// NewStepCommand creates the "step" cobra command.
func NewStepCommand() *cobra.Command {
	var noExec bool

	cmd := &cobra.Command{
		Use:   "step <migrate|collectstatic|serve>",
		Short: "Run a single step of the startup sequence",
		Long: `Run one step of the startup sequence on its own, with the same
program, arguments, working directory and environment "run" would use.

Examples:
  webstart step migrate
  webstart step serve --no-exec`,

		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{model.StepMigrate.String(), model.StepCollectStatic.String(), model.StepServe.String()},

		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseStepKind(args[0])
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "unknown step", err)
			}
			return runSequence(cmd, handoffMode(noExec), kind)
		},
	}
	addNoExecFlag(cmd, &noExec)

	return cmd
}

// runSequence loads the plan, optionally narrows it to one step, and runs
// it. The returned error is the failing step's error, unchanged.
func runSequence(cmd *cobra.Command, mode sequence.HandoffMode, only model.StepKind) error {
	plan, _, _, err := loadPlan()
	if err != nil {
		return err
	}

	if only != "" {
		plan, err = plan.Only(only)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("cannot run step %s", only), err)
		}
	}

	VerboseLog("Startup plan: %s (hand-off: %s)", plan, mode)
	seq := sequence.New(newRunner(mode, logger), logger)
	return seq.Run(cmd.Context(), plan)
}
