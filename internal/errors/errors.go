package errors

import (
	"errors"
	"fmt"
	"time"
)

// EngineError is the base interface for all engine errors.
type EngineError interface {
	error
	IsEngineError() bool
}

// Compile-time verification that all error types implement EngineError.
var (
	_ EngineError = (*InterpreterNotFoundError)(nil)
	_ EngineError = (*LaunchError)(nil)
	_ EngineError = (*PipeClosedError)(nil)
	_ EngineError = (*ProcessExitedError)(nil)
	_ EngineError = (*CommandTimeoutError)(nil)
	_ EngineError = (*BootstrapError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrEngineNotStarted indicates the engine has not been started.
	ErrEngineNotStarted = errors.New("engine not started")

	// ErrEngineStopped indicates the engine has been stopped and cannot be reused.
	ErrEngineStopped = errors.New("engine stopped: engines are single-use, create a new one with New()")

	// ErrSessionNotFound indicates no live process exists for the session key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNilProcess indicates a nil process handle was passed to an operation.
	ErrNilProcess = errors.New("nil process handle")
)

// InterpreterNotFoundError indicates no interpreter executable could be resolved.
type InterpreterNotFoundError struct {
	Candidates []string
}

func (e *InterpreterNotFoundError) Error() string {
	return fmt.Sprintf("no interpreter found, candidates tried: %v", e.Candidates)
}

// IsEngineError implements EngineError.
func (e *InterpreterNotFoundError) IsEngineError() bool { return true }

// LaunchError indicates every resolved interpreter candidate failed to start.
type LaunchError struct {
	Attempts map[string]error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("no interpreter available, all candidates failed: %v", e.Attempts)
}

// IsEngineError implements EngineError.
func (e *LaunchError) IsEngineError() bool { return true }

// PipeClosedError indicates a write to a dead process's input stream.
// It is distinct from a generic failure because it means the subprocess
// died mid-protocol.
type PipeClosedError struct {
	Pid int
	Err error
}

func (e *PipeClosedError) Error() string {
	return fmt.Sprintf("stdin pipe closed for process %d: %v", e.Pid, e.Err)
}

func (e *PipeClosedError) Unwrap() error {
	return e.Err
}

// IsEngineError implements EngineError.
func (e *PipeClosedError) IsEngineError() bool { return true }

// ProcessExitedError indicates the subprocess exited before or during a command.
type ProcessExitedError struct {
	Pid      int
	ExitCode int
}

func (e *ProcessExitedError) Error() string {
	return fmt.Sprintf("process %d exited (exit code %d)", e.Pid, e.ExitCode)
}

// IsEngineError implements EngineError.
func (e *ProcessExitedError) IsEngineError() bool { return true }

// CommandTimeoutError indicates the completion marker did not appear within
// the caller-supplied timeout. The subprocess is left running; post-timeout
// disposition is the caller's decision.
type CommandTimeoutError struct {
	Pid     int
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s (timeout %s) on process %d",
		e.Elapsed.Round(time.Millisecond), e.Timeout, e.Pid)
}

// IsEngineError implements EngineError.
func (e *CommandTimeoutError) IsEngineError() bool { return true }

// BootstrapError indicates capability activation or configuration failed.
type BootstrapError struct {
	Warnings []string
	Errors   []string
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("capability bootstrap failed: %v", e.Errors)
}

// IsEngineError implements EngineError.
func (e *BootstrapError) IsEngineError() bool { return true }
