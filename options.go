package shellherd

import (
	"log/slog"
	"time"

	"github.com/virtengine/shellherd/internal/bootstrap"
	"github.com/virtengine/shellherd/internal/config"
)

// engineOptions collects the configuration assembled by functional options.
type engineOptions struct {
	cfg           config.Options
	strategies    []bootstrap.Strategy
	configCommand string
}

// Option configures the engine using the functional options pattern.
type Option func(*engineOptions)

// applyOptions applies functional options to a fresh engineOptions.
func applyOptions(opts []Option) *engineOptions {
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for operation tracking.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.cfg.Logger = logger
	}
}

// WithCandidates sets the ordered interpreter executable search list.
// Bare names resolve against PATH, paths against the filesystem.
func WithCandidates(candidates ...string) Option {
	return func(o *engineOptions) {
		o.cfg.Candidates = candidates
	}
}

// WithExtraArgs overrides the computed interpreter invocation arguments.
func WithExtraArgs(args ...string) Option {
	return func(o *engineOptions) {
		o.cfg.ExtraArgs = args
	}
}

// WithEchoFormat sets the fmt template producing the line that makes the
// interpreter print the completion marker, e.g. `Write-Output '%s'`.
func WithEchoFormat(format string) Option {
	return func(o *engineOptions) {
		o.cfg.EchoFormat = format
	}
}

// WithExitCommand sets the command sent during graceful termination.
func WithExitCommand(command string) Option {
	return func(o *engineOptions) {
		o.cfg.ExitCommand = command
	}
}

// WithEnv provides additional environment variables for interpreter
// processes.
func WithEnv(env map[string]string) Option {
	return func(o *engineOptions) {
		o.cfg.Env = env
	}
}

// WithCwd sets the working directory for interpreter processes.
func WithCwd(cwd string) Option {
	return func(o *engineOptions) {
		o.cfg.Cwd = cwd
	}
}

// WithStderr sets the callback receiving interpreter stderr lines.
// Stderr is kept out of the marker-matching output buffer.
func WithStderr(fn func(line string)) Option {
	return func(o *engineOptions) {
		o.cfg.Stderr = fn
	}
}

// WithPollInterval sets how often the executor re-reads the output buffer
// while waiting for a completion marker.
func WithPollInterval(d time.Duration) Option {
	return func(o *engineOptions) {
		o.cfg.PollInterval = d
	}
}

// WithStallWarning sets how long output may stay unchanged before an
// advisory "possibly hanging" warning is logged.
func WithStallWarning(d time.Duration) Option {
	return func(o *engineOptions) {
		o.cfg.StallWarnAfter = d
	}
}

// WithLaunchGrace sets how long the launcher waits to confirm a candidate
// did not exit immediately.
func WithLaunchGrace(d time.Duration) Option {
	return func(o *engineOptions) {
		o.cfg.LaunchGrace = d
	}
}

// WithCleanupInterval sets the period of the background sweep.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *engineOptions) {
		o.cfg.CleanupInterval = d
	}
}

// WithDisposeGrace sets how long dispose/replace waits for a natural exit
// before force-killing the process tree.
func WithDisposeGrace(d time.Duration) Option {
	return func(o *engineOptions) {
		o.cfg.DisposeGrace = d
	}
}

// WithBootstrapTimeout bounds each capability bootstrap command.
func WithBootstrapTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.cfg.BootstrapTimeout = d
	}
}

// WithBootstrapStrategies replaces the default ordered capability
// activation strategies.
func WithBootstrapStrategies(strategies ...BootstrapStrategy) Option {
	return func(o *engineOptions) {
		o.strategies = strategies
	}
}

// WithBootstrapConfigCommand replaces the default capability configuration
// command.
func WithBootstrapConfigCommand(command string) Option {
	return func(o *engineOptions) {
		o.configCommand = command
	}
}
