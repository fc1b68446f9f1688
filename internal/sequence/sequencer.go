package sequence

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/webstart/internal/model"
)

// Runner executes a single step.
type Runner interface {
	// Run executes step and waits for it to finish. A non-zero exit is
	// returned as *model.StepError.
	Run(ctx context.Context, step model.Step) error

	// Handoff gives control to the final step. Implementations either
	// replace the current process (and never return on success) or run the
	// step to completion and report its exit status like Run.
	Handoff(ctx context.Context, step model.Step) error
}

// Sequencer runs a Plan one step at a time.
type Sequencer struct {
	runner Runner
	log    zerolog.Logger
}

// New returns a Sequencer that executes steps through runner.
func New(runner Runner, log zerolog.Logger) *Sequencer {
	return &Sequencer{runner: runner, log: log}
}

// Run validates plan and executes its steps in order. The first failing
// step ends the sequence and its error is returned unchanged; later steps
// are never started.
func (s *Sequencer) Run(ctx context.Context, plan Plan) error {
	if err := plan.Validate(); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid startup plan", err)
	}

	for _, step := range plan.Steps {
		s.log.Info().Str("step", step.Kind.String()).Msg(step.Kind.Banner())
		s.log.Debug().
			Str("step", step.Kind.String()).
			Strs("argv", step.Argv()).
			Str("dir", step.Dir).
			Strs("env", step.EnvList()).
			Bool("handoff", step.Handoff).
			Msg("invoking collaborator")

		var err error
		if step.Handoff {
			err = s.runner.Handoff(ctx, step)
		} else {
			err = s.runner.Run(ctx, step)
		}
		if err != nil {
			return err
		}
		s.log.Debug().Str("step", step.Kind.String()).Msg("step completed")
	}

	s.log.Info().Msg("startup completed")
	return nil
}
