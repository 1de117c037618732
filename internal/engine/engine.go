// Package engine ties the launcher, executor, registries, and capability
// bootstrapper together into one service object with an explicit
// Start/Stop lifecycle. There is no ambient global state: every engine
// owns its registries and its background cleanup task.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/virtengine/shellherd/internal/bootstrap"
	"github.com/virtengine/shellherd/internal/config"
	"github.com/virtengine/shellherd/internal/errors"
	"github.com/virtengine/shellherd/internal/proc"
	"github.com/virtengine/shellherd/internal/registry"
)

// shutdownGrace bounds the graceful phase per process during CleanupAll,
// which runs on the shutdown path and should not linger.
const shutdownGrace = 1 * time.Second

// Engine is the managed interpreter process engine. It launches ad hoc
// and named-session processes, drives commands through the marker
// protocol, runs capability bootstraps, and sweeps exited processes on a
// fixed period while started.
type Engine struct {
	log *slog.Logger
	cfg *config.Options

	launcher     *proc.Launcher
	executor     *proc.Executor
	tracker      *registry.Tracker
	sessions     *registry.Sessions
	bootstrapper *bootstrap.Bootstrapper

	mu      sync.Mutex
	started bool
	stopped bool

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates an engine from normalized options. Nil strategies and an
// empty config command select the bootstrap defaults.
func New(cfg *config.Options, strategies []bootstrap.Strategy, configCommand string) *Engine {
	cfg = cfg.Normalize()

	log := cfg.Logger

	e := &Engine{
		log:      log.With("component", "engine"),
		cfg:      cfg,
		launcher: proc.NewLauncher(log, cfg),
		executor: proc.NewExecutor(log, cfg),
		tracker:  registry.NewTracker(),
		done:     make(chan struct{}),
	}

	e.sessions = registry.NewSessions(log, func(p *proc.Process) {
		e.tracker.Remove(p.ID())
	})

	e.bootstrapper = bootstrap.New(log, e, strategies, configCommand, cfg.BootstrapTimeout)

	return e
}

// Start launches the background cleanup supervisor. An engine is
// single-use: once stopped it cannot be started again.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return errors.ErrEngineStopped
	}

	if e.started {
		return nil
	}

	e.started = true

	e.wg.Add(1)

	go e.sweepLoop()

	e.log.Info("Engine started", "cleanup_interval", e.cfg.CleanupInterval)

	return nil
}

// Stop cancels the cleanup supervisor and force-terminates every tracked
// process. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	started := e.started
	e.mu.Unlock()

	e.closeOnce.Do(func() {
		close(e.done)
	})

	if started {
		e.wg.Wait()
	}

	e.CleanupAll()
	e.log.Info("Engine stopped")
}

// runState reports whether the engine can accept operations:
// ErrEngineNotStarted before Start, ErrEngineStopped after Stop.
func (e *Engine) runState() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return errors.ErrEngineStopped
	}

	if !e.started {
		return errors.ErrEngineNotStarted
	}

	return nil
}

// sweepLoop is the periodic cleanup supervisor.
func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Sweep removes and releases every tracked process whose subprocess has
// exited, across both the ad hoc tracker and the session registry. Live
// processes are never touched, so command execution on unrelated
// processes is unaffected.
func (e *Engine) Sweep() {
	e.sessions.Sweep()

	for _, p := range e.tracker.Snapshot() {
		if p.Exited() {
			p.Release()
			e.tracker.Remove(p.ID())

			e.log.Debug("Swept exited process", "id", p.ID())
		}
	}
}

// Launch starts an ad hoc interpreter process and registers it.
func (e *Engine) Launch(ctx context.Context) (*proc.Process, error) {
	if err := e.runState(); err != nil {
		return nil, err
	}

	p, err := e.launcher.Launch(ctx)
	if err != nil {
		return nil, err
	}

	e.tracker.Add(p)

	return p, nil
}

// Execute sends one command to the process and waits up to timeout for
// its completion marker.
func (e *Engine) Execute(
	ctx context.Context,
	p *proc.Process,
	command string,
	timeout time.Duration,
) (string, error) {
	if err := e.runState(); err != nil {
		return "", err
	}

	return e.executor.Execute(ctx, p, command, timeout)
}

// Run implements bootstrap.Runner.
func (e *Engine) Run(
	ctx context.Context,
	p *proc.Process,
	command string,
	timeout time.Duration,
) (string, error) {
	return e.Execute(ctx, p, command, timeout)
}

// Bootstrap runs the capability handshake. The result is returned even on
// failure so callers can inspect accumulated warnings and errors.
func (e *Engine) Bootstrap(
	ctx context.Context,
	p *proc.Process,
	bypass bool,
) (*bootstrap.Result, error) {
	result := e.bootstrapper.Bootstrap(ctx, p, bypass)
	if !result.Success {
		return result, &errors.BootstrapError{
			Warnings: result.Warnings,
			Errors:   result.Errors,
		}
	}

	return result, nil
}

// CreateSession launches a process for the key, terminating and replacing
// any prior process registered under the same key.
func (e *Engine) CreateSession(ctx context.Context, key string) (*proc.Process, error) {
	return e.sessions.CreateOrReplace(key, e.cfg.DisposeGrace, func() (*proc.Process, error) {
		return e.Launch(ctx)
	})
}

// GetSession returns the live process for the key. An exited process is
// treated as absent.
func (e *Engine) GetSession(key string) (*proc.Process, bool) {
	return e.sessions.Get(key)
}

// Session is the error-returning form of GetSession for call chains that
// thread errors rather than treating absence as a normal case. Returns
// ErrSessionNotFound when no live process exists for the key.
func (e *Engine) Session(key string) (*proc.Process, error) {
	p, ok := e.sessions.Get(key)
	if !ok {
		return nil, errors.ErrSessionNotFound
	}

	return p, nil
}

// DisposeSession terminates and removes the session for the key.
func (e *Engine) DisposeSession(key string) bool {
	return e.sessions.Dispose(key, e.cfg.DisposeGrace)
}

// Terminate shuts the process down (gracefully up to grace, then forced)
// and removes it from tracking.
func (e *Engine) Terminate(p *proc.Process, grace time.Duration) bool {
	if p == nil {
		return false
	}

	graceful := p.Terminate(grace)
	e.tracker.Remove(p.ID())

	return graceful
}

// ProcessCount returns the number of tracked processes, ad hoc and
// persistent combined.
func (e *Engine) ProcessCount() int {
	return e.tracker.Count()
}

// CleanupAll force-terminates every tracked process and empties both
// registries. Used during shutdown.
func (e *Engine) CleanupAll() {
	for _, p := range e.sessions.Clear() {
		p.Terminate(shutdownGrace)
		e.tracker.Remove(p.ID())
	}

	for _, p := range e.tracker.Snapshot() {
		p.Terminate(shutdownGrace)
		e.tracker.Remove(p.ID())
	}

	e.log.Info("All processes cleaned up")
}
