package shellherd

import "github.com/virtengine/shellherd/internal/errors"

// Re-export error types from internal package

// InterpreterNotFoundError indicates no interpreter executable could be resolved.
type InterpreterNotFoundError = errors.InterpreterNotFoundError

// LaunchError indicates every resolved interpreter candidate failed to start.
type LaunchError = errors.LaunchError

// PipeClosedError indicates a write to a dead process's input stream.
type PipeClosedError = errors.PipeClosedError

// ProcessExitedError indicates the subprocess exited before or during a command.
type ProcessExitedError = errors.ProcessExitedError

// CommandTimeoutError indicates the completion marker did not appear within
// the caller-supplied timeout.
type CommandTimeoutError = errors.CommandTimeoutError

// BootstrapError indicates capability activation or configuration failed.
type BootstrapError = errors.BootstrapError

// EngineError is the base interface for all engine errors.
type EngineError = errors.EngineError

// Re-export sentinel errors from internal package.
var (
	// ErrEngineNotStarted indicates the engine has not been started.
	ErrEngineNotStarted = errors.ErrEngineNotStarted

	// ErrEngineStopped indicates the engine has been stopped and cannot be reused.
	ErrEngineStopped = errors.ErrEngineStopped

	// ErrSessionNotFound indicates no live process exists for the session key.
	ErrSessionNotFound = errors.ErrSessionNotFound

	// ErrNilProcess indicates a nil process handle was passed to an operation.
	ErrNilProcess = errors.ErrNilProcess
)
