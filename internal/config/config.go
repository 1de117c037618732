package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/toml"
)

// Default timing parameters for the engine. Callers can override any of
// them via options or a config file.
const (
	// DefaultPollInterval is how often the executor re-reads the output
	// buffer while waiting for a completion marker.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultStallWarnAfter is how long the output may stay unchanged
	// before the executor logs a "possibly hanging" warning. Advisory only.
	DefaultStallWarnAfter = 30 * time.Second

	// DefaultLaunchGrace is how long the launcher waits after starting a
	// candidate to confirm it did not exit immediately.
	DefaultLaunchGrace = 250 * time.Millisecond

	// DefaultCleanupInterval is the period of the background sweep that
	// discards processes whose subprocess has already exited.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultDisposeGrace is how long dispose/replace waits for a natural
	// exit before force-killing the process tree.
	DefaultDisposeGrace = 5 * time.Second

	// DefaultBootstrapTimeout bounds each capability bootstrap command.
	DefaultBootstrapTimeout = 120 * time.Second
)

// DefaultCandidates is the ordered interpreter search list used when the
// caller provides none. Bare names resolve against PATH, absolute paths
// against the filesystem.
var DefaultCandidates = []string{
	"pwsh",
	"powershell",
	"/usr/local/bin/pwsh",
	"/usr/bin/pwsh",
}

// Options configures the engine.
type Options struct {
	// Logger is the slog logger for operation tracking.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Candidates is the ordered list of interpreter executables to try.
	// If empty, DefaultCandidates is used.
	Candidates []string

	// ExtraArgs overrides the computed interpreter invocation arguments.
	// If nil, arguments are derived from the interpreter flavor.
	ExtraArgs []string

	// EchoFormat is a fmt template producing the line that makes the
	// interpreter print the completion marker verbatim, e.g.
	// `Write-Output '%s'`. If empty, it is derived from the flavor.
	EchoFormat string

	// ExitCommand is the command sent during graceful termination.
	// If empty, it is derived from the flavor (usually "exit").
	ExitCommand string

	// Env provides additional environment variables for interpreter
	// processes, merged over the inherited environment.
	Env map[string]string

	// Cwd sets the working directory for interpreter processes.
	// If empty, the caller's working directory is inherited.
	Cwd string

	// Stderr receives interpreter stderr lines. Stderr is kept out of the
	// output buffer so it cannot corrupt marker matching. If nil, stderr
	// lines are logged at debug level.
	Stderr func(line string)

	// PollInterval, StallWarnAfter, LaunchGrace, CleanupInterval,
	// DisposeGrace and BootstrapTimeout override the package defaults
	// when positive.
	PollInterval     time.Duration
	StallWarnAfter   time.Duration
	LaunchGrace      time.Duration
	CleanupInterval  time.Duration
	DisposeGrace     time.Duration
	BootstrapTimeout time.Duration
}

// Normalize fills unset fields with defaults and returns the receiver for
// chaining. It never mutates caller-visible slices.
func (o *Options) Normalize() *Options {
	if o.Logger == nil {
		o.Logger = nopLogger()
	}

	if len(o.Candidates) == 0 {
		o.Candidates = append([]string(nil), DefaultCandidates...)
	}

	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}

	if o.StallWarnAfter <= 0 {
		o.StallWarnAfter = DefaultStallWarnAfter
	}

	if o.LaunchGrace <= 0 {
		o.LaunchGrace = DefaultLaunchGrace
	}

	if o.CleanupInterval <= 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}

	if o.DisposeGrace <= 0 {
		o.DisposeGrace = DefaultDisposeGrace
	}

	if o.BootstrapTimeout <= 0 {
		o.BootstrapTimeout = DefaultBootstrapTimeout
	}

	return o
}

// fileConfig is the TOML key mapping for engine settings.
type fileConfig struct {
	Candidates       []string          `toml:"candidates"`
	ExtraArgs        []string          `toml:"extra_args"`
	EchoFormat       string            `toml:"echo_format"`
	ExitCommand      string            `toml:"exit_command"`
	Cwd              string            `toml:"working_dir"`
	Env              map[string]string `toml:"env"`
	PollIntervalMs   int               `toml:"poll_interval_ms"`
	StallWarnSec     int               `toml:"stall_warn_seconds"`
	LaunchGraceMs    int               `toml:"launch_grace_ms"`
	CleanupSec       int               `toml:"cleanup_interval_seconds"`
	DisposeGraceSec  int               `toml:"dispose_grace_seconds"`
	BootstrapTimeSec int               `toml:"bootstrap_timeout_seconds"`
}

// LoadFile overlays settings from a TOML file onto opts. Keys absent from
// the file leave the corresponding option untouched.
func LoadFile(path string, opts *Options) error {
	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}

	if meta.IsDefined("candidates") {
		opts.Candidates = append([]string(nil), raw.Candidates...)
	}

	if meta.IsDefined("extra_args") {
		opts.ExtraArgs = append([]string(nil), raw.ExtraArgs...)
	}

	if meta.IsDefined("echo_format") {
		opts.EchoFormat = raw.EchoFormat
	}

	if meta.IsDefined("exit_command") {
		opts.ExitCommand = raw.ExitCommand
	}

	if meta.IsDefined("working_dir") {
		opts.Cwd = raw.Cwd
	}

	if meta.IsDefined("env") {
		opts.Env = raw.Env
	}

	if meta.IsDefined("poll_interval_ms") {
		opts.PollInterval = time.Duration(raw.PollIntervalMs) * time.Millisecond
	}

	if meta.IsDefined("stall_warn_seconds") {
		opts.StallWarnAfter = time.Duration(raw.StallWarnSec) * time.Second
	}

	if meta.IsDefined("launch_grace_ms") {
		opts.LaunchGrace = time.Duration(raw.LaunchGraceMs) * time.Millisecond
	}

	if meta.IsDefined("cleanup_interval_seconds") {
		opts.CleanupInterval = time.Duration(raw.CleanupSec) * time.Second
	}

	if meta.IsDefined("dispose_grace_seconds") {
		opts.DisposeGrace = time.Duration(raw.DisposeGraceSec) * time.Second
	}

	if meta.IsDefined("bootstrap_timeout_seconds") {
		opts.BootstrapTimeout = time.Duration(raw.BootstrapTimeSec) * time.Second
	}

	return nil
}
