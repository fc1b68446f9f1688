// Package model defines the domain types and value objects for the
// webstart CLI.
//
// This package contains pure data structures with no external dependencies.
// Steps are plain descriptions of external commands; nothing here starts a
// process. The sequencer in internal/sequence turns them into processes.
//
// The package also defines exit codes (ExitCode) and the two error types
// that carry them: CLIError for failures of webstart itself and StepError
// for a collaborator that exited non-zero.
package model
