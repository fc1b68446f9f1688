// Package cli: plan.go implements the "webstart plan" command.
//
// The plan command prints the commands the startup sequence would run,
// after configuration is applied, without running anything.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/webstart/internal/model"
	"github.com/shinji-kodama/webstart/internal/sequence"
)

// NewPlanCommand creates the "plan" cobra command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the startup sequence without running it",
		Long: `Print each step of the startup sequence with its full command line.

Examples:
  webstart plan
  webstart plan --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			plan, _, path, err := loadPlan()
			if err != nil {
				return err
			}
			if IsJSONOutput() {
				return printPlanJSON(cmd.OutOrStdout(), plan, path)
			}
			printPlanText(cmd.OutOrStdout(), plan, path)
			return nil
		},
	}

	return cmd
}

// printPlanJSON outputs the plan as structured JSON.
func printPlanJSON(w io.Writer, plan sequence.Plan, configFile string) error {
	type resultJSON struct {
		Config string       `json:"config,omitempty"`
		Order  string       `json:"order"`
		Steps  []model.Step `json:"steps"`
	}

	data, err := json.MarshalIndent(resultJSON{
		Config: configFile,
		Order:  plan.String(),
		Steps:  plan.Steps,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printPlanText outputs the plan as a numbered list of command lines.
func printPlanText(w io.Writer, plan sequence.Plan, configFile string) {
	if configFile != "" {
		fmt.Fprintf(w, "Config: %s\n\n", configFile)
	}

	for i, s := range plan.Steps {
		fmt.Fprintf(w, "  %d. %-14s %s\n", i+1, s.Kind, s.CommandLine())
		if s.Dir != "" {
			fmt.Fprintf(w, "     %-14s %s\n", "dir:", s.Dir)
		}
		for _, kv := range s.EnvList() {
			fmt.Fprintf(w, "     %-14s %s\n", "env:", kv)
		}
	}
}
