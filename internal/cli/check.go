// Package cli: check.go implements the "webstart check" command.
//
// check is a preflight for operators: it verifies every collaborator
// program can be found, the working directory exists, and the server's
// listen address is free. It never runs a collaborator, and run never
// calls it.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/webstart/internal/config"
	"github.com/shinji-kodama/webstart/internal/model"
	"github.com/shinji-kodama/webstart/internal/port"
	"github.com/shinji-kodama/webstart/internal/sequence"
)

// programCheck is the lookup result for one collaborator program.
type programCheck struct {
	Step    model.StepKind `json:"step"`
	Program string         `json:"program"`
	Path    string         `json:"path,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// checkReport collects every preflight result.
type checkReport struct {
	Programs      []programCheck `json:"programs"`
	WorkDir       string         `json:"workdir,omitempty"`
	WorkDirError  string         `json:"workdirError,omitempty"`
	Bind          string         `json:"bind"`
	BindAvailable bool           `json:"bindAvailable"`
	BindError     string         `json:"bindError,omitempty"`
}

// lookPath resolves collaborator programs; tests replace it.
var lookPath = exec.LookPath

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify collaborators and the listen address without starting anything",
		Long: `Check that the startup sequence could run:

  - every program (python, gunicorn) resolves on PATH
  - the configured working directory exists
  - 0.0.0.0:8000 is free

Exit codes: 0 ready, 2 bad working directory, 127 missing program,
4 listen address in use.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			plan, cfg, _, err := loadPlan()
			if err != nil {
				return err
			}

			report := runChecks(plan, cfg, port.NewScanner(model.ServerBindHost))
			if IsJSONOutput() {
				data, _ := json.MarshalIndent(report, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				printCheckText(cmd.OutOrStdout(), report)
			}
			return report.err()
		},
	}

	return cmd
}

// runChecks performs every preflight check. Programs shared by several
// steps are looked up once, relative paths against the working directory
// the steps will run in.
func runChecks(plan sequence.Plan, cfg config.Config, scanner *port.Scanner) checkReport {
	report := checkReport{Bind: model.ServerBind()}

	seen := make(map[string]bool)
	for _, s := range plan.Steps {
		program := s.ProgramPath()
		if seen[program] {
			continue
		}
		seen[program] = true

		pc := programCheck{Step: s.Kind, Program: s.Program}
		if path, err := lookPath(program); err != nil {
			pc.Error = err.Error()
		} else {
			pc.Path = path
		}
		report.Programs = append(report.Programs, pc)
	}

	if cfg.WorkDir != "" {
		report.WorkDir = cfg.WorkDir
		if info, err := os.Stat(cfg.WorkDir); err != nil {
			report.WorkDirError = err.Error()
		} else if !info.IsDir() {
			report.WorkDirError = "not a directory"
		}
	}

	if err := scanner.ProbePort(model.ServerBindPort, "tcp"); err != nil {
		report.BindError = err.Error()
	} else {
		report.BindAvailable = true
	}

	return report
}

// err converts the report into the command's error. Configuration
// problems come first, then missing programs, then the listen address.
func (r checkReport) err() error {
	if r.WorkDirError != "" {
		return model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("working directory %s: %s", r.WorkDir, r.WorkDirError))
	}
	for _, p := range r.Programs {
		if p.Error != "" {
			return model.NewCLIError(model.ExitCommandNotFound,
				fmt.Sprintf("%s: %s: command not found", p.Step, p.Program))
		}
	}
	if !r.BindAvailable {
		return model.NewCLIError(model.ExitPortInUse,
			fmt.Sprintf("listen address %s is not available: %s", r.Bind, r.BindError))
	}
	return nil
}

// printCheckText outputs the report as human-readable text.
func printCheckText(w io.Writer, r checkReport) {
	for _, p := range r.Programs {
		if p.Error != "" {
			fmt.Fprintf(w, "  FAIL  %-14s %s (%s)\n", p.Step, p.Program, p.Error)
		} else {
			fmt.Fprintf(w, "  ok    %-14s %s -> %s\n", p.Step, p.Program, p.Path)
		}
	}

	if r.WorkDir != "" {
		if r.WorkDirError != "" {
			fmt.Fprintf(w, "  FAIL  %-14s %s (%s)\n", "workdir", r.WorkDir, r.WorkDirError)
		} else {
			fmt.Fprintf(w, "  ok    %-14s %s\n", "workdir", r.WorkDir)
		}
	}

	status := "ok  "
	detail := "free"
	if !r.BindAvailable {
		status = "FAIL"
		detail = r.BindError
	}
	fmt.Fprintf(w, "  %s  %-14s %s (%s)\n", status, "bind", r.Bind, detail)
	fmt.Fprintf(w, "\n  workers=%d timeout=%ds\n", model.ServerWorkers, model.ServerTimeoutSeconds)
}
