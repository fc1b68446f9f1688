// Package sequence implements the startup sequencer.
//
// A Plan lists the steps in the literal order migrate > collectstatic >
// serve. The Sequencer runs each step to completion through a Runner and
// stops at the first failure, returning that failure unchanged so its exit
// status reaches the operating system. The last step hands off: on Unix the
// server replaces the webstart process, elsewhere (or on request) webstart
// supervises it as a child and forwards termination signals.
//
// The sequencer never retries, never skips a step because an earlier run
// already did the work, and never probes a step's health. Idempotence is a
// property of the collaborators.
package sequence
