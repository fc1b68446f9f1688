// Package cli implements the cobra-based CLI commands for webstart.
//
// Each subcommand (run, step, plan, check) is defined in its own file
// within this package. This file defines the root command, the global
// flags, and the translation of errors into process exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/webstart/internal/config"
	"github.com/shinji-kodama/webstart/internal/logging"
	"github.com/shinji-kodama/webstart/internal/model"
	"github.com/shinji-kodama/webstart/internal/sequence"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command.
var (
	// jsonOutput switches logs to JSON lines and command output to JSON.
	jsonOutput bool

	// verbose enables debug logging (argv, working directory, environment).
	verbose bool

	// quiet limits logging to warnings and errors.
	quiet bool

	// configPath is an explicit configuration file. When empty, the
	// current directory is searched (see config.SearchNames).
	configPath string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// logger is replaced by PersistentPreRunE once the flags are parsed.
var logger = zerolog.Nop()

// newRunner constructs the step runner. Tests replace it with a recorder.
var newRunner = func(mode sequence.HandoffMode, log zerolog.Logger) sequence.Runner {
	return sequence.NewExecRunner(mode, log)
}

// NewRootCommand creates and configures the root cobra command.
//
// Invoked without a subcommand, webstart runs the full startup sequence,
// so it can be used directly as a container or App Service startup command.
func NewRootCommand() *cobra.Command {
	var noExec bool

	rootCmd := &cobra.Command{
		Use:   "webstart",
		Short: "Startup command for a Django application server",
		Long: `webstart prepares and launches a Django application:

  1. python manage.py migrate --noinput
  2. python manage.py collectstatic --noinput
  3. gunicorn --bind=0.0.0.0:8000 --workers=2 --timeout=120 <app>

Each step runs only if the previous one succeeded. A failing step's exit
status becomes webstart's exit status. The server replaces the webstart
process unless --no-exec is given.`,

		Args: cobra.NoArgs,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// Execute formats them (text or JSON based on --json).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = logging.New("webstart", os.Stderr, logging.Options{
				JSON:  jsonOutput,
				Level: logging.LevelFor(verbose, quiet),
			})
			return nil
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequence(cmd, handoffMode(noExec), "")
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs and results in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a config file (.yaml, .yml, .json, .jsonc, .toml)")
	addNoExecFlag(rootCmd, &noExec)

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewStepCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewCheckCommand())

	return rootCmd
}

// addNoExecFlag registers --no-exec on cmd.
func addNoExecFlag(cmd *cobra.Command, noExec *bool) {
	cmd.Flags().BoolVar(noExec, "no-exec", false,
		"Run the server as a child process and forward signals instead of replacing webstart")
}

// handoffMode maps --no-exec to a sequence.HandoffMode.
func handoffMode(noExec bool) sequence.HandoffMode {
	if noExec {
		return sequence.HandoffSupervise
	}
	return sequence.DefaultHandoffMode()
}

// loadPlan resolves the configuration and builds the startup plan.
// It returns the config file path used, or "" for defaults.
func loadPlan() (sequence.Plan, config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return sequence.Plan{}, config.Config{}, "", model.WrapCLIError(
			model.ExitGeneralError, "failed to determine working directory", err)
	}

	cfg, path, err := config.Resolve(configPath, cwd)
	if err != nil {
		return sequence.Plan{}, config.Config{}, path, err
	}
	if path != "" {
		VerboseLog("Loaded config from %s", path)
	}
	return sequence.NewPlan(cfg), cfg, path, nil
}

// Execute runs the root command and exits with the resulting code.
// This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var stepErr *model.StepError
	if !errors.As(err, &stepErr) {
		// A failed collaborator has already printed its own diagnostics;
		// everything else is reported here.
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
		} else {
			printError(err.Error(), nil)
		}
	}
	os.Exit(ExitCode(err))
}

// ExitCode returns the process exit code for err: the collaborator's own
// status for a *model.StepError, the carried code for a *model.CLIError,
// 0 for nil and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return int(model.ExitSuccess)
	}

	var stepErr *model.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Code
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return int(cliErr.Code)
	}

	return int(model.ExitGeneralError)
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output, so errors go to
		// stderr even in JSON mode.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// VerboseLog writes a debug record. It is visible only with --verbose.
func VerboseLog(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
