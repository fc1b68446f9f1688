package sequence

import (
	"fmt"
	"strings"

	"github.com/shinji-kodama/webstart/internal/config"
	"github.com/shinji-kodama/webstart/internal/model"
)

// Plan is an ordered list of steps.
type Plan struct {
	Steps []model.Step
}

// NewPlan builds the startup plan from cfg:
//
//	<python> <manage> migrate --noinput
//	<python> <manage> collectstatic --noinput
//	<server> --bind=0.0.0.0:8000 --workers=2 --timeout=120 <app>
func NewPlan(cfg config.Config) Plan {
	step := func(kind model.StepKind, program string, args []string) model.Step {
		return model.Step{
			Kind:    kind,
			Program: program,
			Args:    args,
			Dir:     cfg.WorkDir,
			Env:     copyEnv(cfg.Env),
		}
	}

	serve := step(model.StepServe, cfg.Server, model.ServerArgs(cfg.App))
	serve.Handoff = true

	return Plan{Steps: []model.Step{
		step(model.StepMigrate, cfg.Python, []string{cfg.Manage, "migrate", "--noinput"}),
		step(model.StepCollectStatic, cfg.Python, []string{cfg.Manage, "collectstatic", "--noinput"}),
		serve,
	}}
}

// copyEnv gives each step its own map so a runner mutating one step cannot
// leak into another.
func copyEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// Validate checks the plan can be run: it is not empty, every step is
// valid, no kind repeats, and only the last step may hand off.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return EmptyPlanError{}
	}

	seen := make(map[model.StepKind]bool, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Kind] {
			return DuplicateStepError(s.Kind)
		}
		seen[s.Kind] = true
		if s.Handoff && i != len(p.Steps)-1 {
			return HandoffNotLastError(s.Kind)
		}
	}
	return nil
}

// Only returns a plan holding just the step of the given kind.
func (p Plan) Only(kind model.StepKind) (Plan, error) {
	for _, s := range p.Steps {
		if s.Kind == kind {
			return Plan{Steps: []model.Step{s}}, nil
		}
	}
	return Plan{}, fmt.Errorf("plan has no %s step", kind)
}

// String renders the step order, e.g. "migrate > collectstatic > serve".
func (p Plan) String() string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Kind.String()
	}
	return strings.Join(names, " > ")
}

// EmptyPlanError indicates a plan without steps.
type EmptyPlanError struct{}

func (EmptyPlanError) Error() string {
	return "empty startup plan"
}

// DuplicateStepError indicates a step kind listed more than once.
type DuplicateStepError model.StepKind

func (d DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step: %q", string(d))
}

// HandoffNotLastError indicates a hand-off step followed by other steps,
// which could never run.
type HandoffNotLastError model.StepKind

func (h HandoffNotLastError) Error() string {
	return fmt.Sprintf("hand-off step %q must be last", string(h))
}

var (
	_ error = EmptyPlanError{}
	_ error = DuplicateStepError("")
	_ error = HandoffNotLastError("")
)
