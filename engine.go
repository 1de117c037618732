package shellherd

import (
	"context"
	"time"
)

// Engine is the caller-facing surface of the managed interpreter process
// engine: the boundary the domain automation and orchestration layers
// consume.
//
// An Engine must be started with Start before use and stopped with Stop
// when done. Engines are single-use; create a new one with New after
// stopping.
type Engine interface {
	// Start launches the background cleanup supervisor.
	Start() error

	// Stop cancels the cleanup supervisor and force-terminates every
	// tracked process. Safe to call more than once.
	Stop()

	// Launch starts an ad hoc interpreter process and registers it.
	Launch(ctx context.Context) (*Process, error)

	// Execute sends one command to the process and waits up to timeout
	// for its completion marker. Returns the command output with the
	// marker removed and surrounding whitespace trimmed. On timeout the
	// subprocess is left running; terminating it is the caller's call.
	Execute(ctx context.Context, p *Process, command string, timeout time.Duration) (string, error)

	// Bootstrap runs the two-phase capability handshake against the
	// process. With bypass set, both phases are skipped and the process
	// is marked configured with the synthetic bypass variant. The result
	// is non-nil even when an error is returned.
	Bootstrap(ctx context.Context, p *Process, bypass bool) (*BootstrapResult, error)

	// CreateSession launches a process under the key, terminating and
	// replacing any prior process registered under the same key.
	CreateSession(ctx context.Context, key string) (*Process, error)

	// GetSession returns the live process for the key. An exited process
	// is treated as absent.
	GetSession(key string) (*Process, bool)

	// Session is the error-returning form of GetSession: it returns
	// ErrSessionNotFound when no live process exists for the key.
	Session(key string) (*Process, error)

	// DisposeSession terminates and removes the session for the key.
	// Returns false if no session existed.
	DisposeSession(key string) bool

	// Terminate shuts the process down, gracefully up to grace, then
	// forcefully including descendants. Reports whether the exit was
	// graceful.
	Terminate(p *Process, grace time.Duration) bool

	// ProcessCount returns the number of tracked processes, ad hoc and
	// persistent combined.
	ProcessCount() int

	// CleanupAll force-terminates every tracked process and empties both
	// registries. Used during shutdown.
	CleanupAll()
}

// New creates an engine configured by the given options.
func New(opts ...Option) Engine {
	return newEngine(applyOptions(opts))
}
