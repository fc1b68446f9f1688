package sequence

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/webstart/internal/config"
	"github.com/shinji-kodama/webstart/internal/model"
)

// call records one invocation seen by fakeRunner.
type call struct {
	Kind    model.StepKind
	Argv    []string
	Handoff bool
}

// fakeRunner records every step it is asked to run and fails the steps
// listed in failures with the mapped exit code.
type fakeRunner struct {
	calls    []call
	failures map[model.StepKind]int
}

func (f *fakeRunner) record(step model.Step, handoff bool) error {
	f.calls = append(f.calls, call{Kind: step.Kind, Argv: step.Argv(), Handoff: handoff})
	if code, ok := f.failures[step.Kind]; ok {
		return &model.StepError{Kind: step.Kind, Code: code}
	}
	return nil
}

func (f *fakeRunner) Run(_ context.Context, step model.Step) error {
	return f.record(step, false)
}

func (f *fakeRunner) Handoff(_ context.Context, step model.Step) error {
	return f.record(step, true)
}

func (f *fakeRunner) kinds() []model.StepKind {
	kinds := make([]model.StepKind, len(f.calls))
	for i, c := range f.calls {
		kinds[i] = c.Kind
	}
	return kinds
}

// runDefault runs the default plan through a fake runner and returns it
// with the sequencer's error.
func runDefault(t *testing.T, failures map[model.StepKind]int) (*fakeRunner, error) {
	t.Helper()
	runner := &fakeRunner{failures: failures}
	seq := New(runner, zerolog.Nop())
	return runner, seq.Run(context.Background(), NewPlan(config.Default()))
}

// TestSequencer_AllSucceed verifies the literal order
// migrate > collectstatic > serve and that only serve hands off.
func TestSequencer_AllSucceed(t *testing.T) {
	runner, err := runDefault(t, nil)
	require.NoError(t, err)

	want := []call{
		{Kind: model.StepMigrate, Argv: []string{"python", "manage.py", "migrate", "--noinput"}},
		{Kind: model.StepCollectStatic, Argv: []string{"python", "manage.py", "collectstatic", "--noinput"}},
		{
			Kind:    model.StepServe,
			Argv:    []string{"gunicorn", "--bind=0.0.0.0:8000", "--workers=2", "--timeout=120", "core.wsgi"},
			Handoff: true,
		},
	}
	if diff := cmp.Diff(want, runner.calls); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
}

// TestSequencer_MigrateFails verifies that a failed migration stops the
// sequence before asset collection and server launch.
func TestSequencer_MigrateFails(t *testing.T) {
	runner, err := runDefault(t, map[model.StepKind]int{model.StepMigrate: 1})

	var stepErr *model.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, model.StepMigrate, stepErr.Kind)
	assert.Equal(t, 1, stepErr.Code)
	assert.Equal(t, []model.StepKind{model.StepMigrate}, runner.kinds())
}

// TestSequencer_CollectStaticFails verifies the server never launches and
// the collector's exit code is propagated unchanged.
func TestSequencer_CollectStaticFails(t *testing.T) {
	runner, err := runDefault(t, map[model.StepKind]int{model.StepCollectStatic: 3})

	var stepErr *model.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, model.StepCollectStatic, stepErr.Kind)
	assert.Equal(t, 3, stepErr.Code)
	assert.Equal(t, []model.StepKind{model.StepMigrate, model.StepCollectStatic}, runner.kinds())
}

// TestSequencer_ServeFails verifies the server's own exit status is
// returned when the hand-off returns at all.
func TestSequencer_ServeFails(t *testing.T) {
	runner, err := runDefault(t, map[model.StepKind]int{model.StepServe: 143})

	var stepErr *model.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 143, stepErr.Code)
	assert.Len(t, runner.calls, 3)
}

// TestSequencer_ServerArgsFixed verifies the bind address, worker count
// and timeout do not depend on any configuration value.
func TestSequencer_ServerArgsFixed(t *testing.T) {
	cfg := config.Default()
	cfg.Server = "/venv/bin/gunicorn"
	cfg.App = "obra.wsgi:application"
	cfg.Env = map[string]string{"WEB_CONCURRENCY": "8", "GUNICORN_CMD_ARGS": "--workers=8"}

	runner := &fakeRunner{}
	require.NoError(t, New(runner, zerolog.Nop()).Run(context.Background(), NewPlan(cfg)))

	require.Len(t, runner.calls, 3)
	serve := runner.calls[2]
	assert.Equal(t,
		[]string{"/venv/bin/gunicorn", "--bind=0.0.0.0:8000", "--workers=2", "--timeout=120", "obra.wsgi:application"},
		serve.Argv)
}

// TestSequencer_RunTwice verifies the sequencer neither suppresses nor
// adds steps on a second run: every collaborator runs again.
func TestSequencer_RunTwice(t *testing.T) {
	runner := &fakeRunner{}
	seq := New(runner, zerolog.Nop())
	plan := NewPlan(config.Default())

	require.NoError(t, seq.Run(context.Background(), plan))
	require.NoError(t, seq.Run(context.Background(), plan))

	assert.Equal(t, []model.StepKind{
		model.StepMigrate, model.StepCollectStatic, model.StepServe,
		model.StepMigrate, model.StepCollectStatic, model.StepServe,
	}, runner.kinds())
}

// TestSequencer_InvalidPlan verifies nothing runs when the plan is invalid.
func TestSequencer_InvalidPlan(t *testing.T) {
	runner := &fakeRunner{}
	err := New(runner, zerolog.Nop()).Run(context.Background(), Plan{})

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
	assert.True(t, errors.As(err, new(EmptyPlanError)))
	assert.Empty(t, runner.calls)
}

// TestSequencer_LogsBanners verifies one info banner per step, in order.
func TestSequencer_LogsBanners(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	runner := &fakeRunner{failures: map[model.StepKind]int{model.StepCollectStatic: 1}}
	_ = New(runner, logger).Run(context.Background(), NewPlan(config.Default()))

	out := buf.String()
	assert.Contains(t, out, `"message":"running migrations"`)
	assert.Contains(t, out, `"message":"collecting static files"`)
	assert.NotContains(t, out, "starting application server")
	assert.NotContains(t, out, "startup completed")
}
