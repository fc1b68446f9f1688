// Package model defines the domain types for the webstart CLI.
//
// All entities in this package describe the startup sequence: which external
// collaborators run, with which arguments, and how their outcome maps to the
// exit status of webstart itself.
package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// StepKind identifies one of the three collaborators of the startup
// sequence. The string form doubles as the subcommand name accepted by
// "webstart step".
type StepKind string

const (
	// StepMigrate applies pending database schema migrations.
	StepMigrate StepKind = "migrate"

	// StepCollectStatic gathers static assets into the serving location.
	StepCollectStatic StepKind = "collectstatic"

	// StepServe launches the WSGI application server. It is always the last
	// step and the only one that takes over the process.
	StepServe StepKind = "serve"
)

// String returns the string representation of StepKind.
func (k StepKind) String() string {
	return string(k)
}

// IsValid checks whether the StepKind value is one of the predefined kinds.
func (k StepKind) IsValid() bool {
	switch k {
	case StepMigrate, StepCollectStatic, StepServe:
		return true
	default:
		return false
	}
}

// Banner returns the progress line logged before the step starts.
func (k StepKind) Banner() string {
	switch k {
	case StepMigrate:
		return "running migrations"
	case StepCollectStatic:
		return "collecting static files"
	case StepServe:
		return "starting application server"
	default:
		return "running " + string(k)
	}
}

// ParseStepKind converts a string to a StepKind.
// Returns an error if the string does not match any valid kind.
func ParseStepKind(s string) (StepKind, error) {
	kind := StepKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid step: %q (valid: migrate, collectstatic, serve)", s)
	}
	return kind, nil
}

// Fixed application server settings. These are literal constants of the
// startup command and are never read from configuration or flags.
const (
	// ServerBindHost binds the server on all interfaces.
	ServerBindHost = "0.0.0.0"

	// ServerBindPort is the TCP port the container host routes traffic to.
	ServerBindPort = 8000

	// ServerWorkers is the number of worker processes the server forks.
	ServerWorkers = 2

	// ServerTimeoutSeconds is the request timeout enforced by the server.
	ServerTimeoutSeconds = 120
)

// ServerBind returns the listen address passed to the application server.
func ServerBind() string {
	return fmt.Sprintf("%s:%d", ServerBindHost, ServerBindPort)
}

// ServerArgs returns the fixed server flags followed by the WSGI module.
//
//	--bind=0.0.0.0:8000 --workers=2 --timeout=120 <app>
func ServerArgs(app string) []string {
	return []string{
		"--bind=" + ServerBind(),
		"--workers=" + strconv.Itoa(ServerWorkers),
		"--timeout=" + strconv.Itoa(ServerTimeoutSeconds),
		app,
	}
}

// Step describes one external command of the startup sequence.
type Step struct {
	// Kind identifies which collaborator this step invokes.
	Kind StepKind `json:"kind"`

	// Program is the executable name or path. Bare names are resolved
	// against PATH at run time.
	Program string `json:"program"`

	// Args are the command-line arguments, excluding the program itself.
	Args []string `json:"args"`

	// Dir is the working directory. Empty means the current directory.
	Dir string `json:"dir,omitempty"`

	// Env holds extra environment variables layered on top of the
	// inherited process environment.
	Env map[string]string `json:"env,omitempty"`

	// Handoff marks the step that takes over terminal control instead of
	// returning to the sequencer.
	Handoff bool `json:"handoff"`
}

// Argv returns the full argument vector, program first.
func (s *Step) Argv() []string {
	argv := make([]string, 0, len(s.Args)+1)
	argv = append(argv, s.Program)
	return append(argv, s.Args...)
}

// ProgramPath returns the program as it should be looked up. A relative
// path with a directory component is taken relative to Dir, matching how
// exec.Cmd resolves it when Dir is set. Bare names are left for a PATH
// search.
func (s *Step) ProgramPath() string {
	if s.Dir == "" || filepath.IsAbs(s.Program) || filepath.Base(s.Program) == s.Program {
		return s.Program
	}
	return filepath.Join(s.Dir, s.Program)
}

// CommandLine renders the step as a single shell-like line for display.
// Arguments containing whitespace are quoted.
func (s *Step) CommandLine() string {
	parts := make([]string, 0, len(s.Args)+1)
	for _, a := range s.Argv() {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// EnvList returns the extra environment as sorted KEY=VALUE pairs.
func (s *Step) EnvList() []string {
	if len(s.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}
	return env
}

// Validate checks whether the Step has the fields required to run it.
func (s *Step) Validate() error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("step: invalid kind %q", s.Kind)
	}
	if strings.TrimSpace(s.Program) == "" {
		return fmt.Errorf("step %s: program must not be empty", s.Kind)
	}
	for k := range s.Env {
		if k == "" || strings.Contains(k, "=") {
			return fmt.Errorf("step %s: invalid environment variable name %q", s.Kind, k)
		}
	}
	return nil
}

// ExitCode defines the exit codes of the webstart process.
// A failed step does not use these; it exits with the collaborator's own
// status instead (see StepError).
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the configuration file is missing,
	// unreadable or invalid.
	ExitConfigError ExitCode = 2

	// ExitPortInUse indicates the server bind address is already taken.
	// Only the check command reports it.
	ExitPortInUse ExitCode = 4

	// ExitNotExecutable indicates a collaborator was found but could not
	// be executed. Matches the POSIX shell convention.
	ExitNotExecutable ExitCode = 126

	// ExitCommandNotFound indicates a collaborator program was not found.
	// Matches the POSIX shell convention.
	ExitCommandNotFound ExitCode = 127
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// StepError reports a collaborator that ran and exited with a non-zero
// status. The collaborator has already printed its own diagnostics, so the
// CLI exits with Code and adds nothing.
type StepError struct {
	// Kind is the step that failed.
	Kind StepKind

	// Code is the collaborator's exit status.
	Code int

	// Err is the underlying process error.
	Err error
}

// Error satisfies the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s exited with status %d", e.Kind, e.Code)
}

// Unwrap returns the underlying process error.
func (e *StepError) Unwrap() error {
	return e.Err
}
