// Package proc owns interpreter subprocesses: launching them, driving the
// marker-based command protocol, and tearing them down.
package proc

import (
	"io"
	"log/slog"
	"maps"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/virtengine/shellherd/internal/interp"
)

// Process is a managed interpreter subprocess: its input pipe, a
// mutex-guarded output accumulator, activity timestamps, and capability
// state. A Process is created by the Launcher and stays valid until the
// subprocess exits and the handle is released.
//
// Only one command may be in flight against a Process at a time: the
// output buffer and completion marker are shared per-process state, so the
// executor serializes commands through execMu rather than relying on
// caller discipline.
type Process struct {
	id     string
	path   string
	flavor interp.Flavor
	log    *slog.Logger

	cmd   *exec.Cmd
	stdin io.WriteCloser

	echoFormat string
	exitCmd    string

	outMu  sync.Mutex
	output strings.Builder

	created time.Time

	actMu        sync.Mutex
	lastActivity time.Time

	capMu      sync.Mutex
	capLoaded  bool
	capVariant string

	metaMu   sync.Mutex
	metadata map[string]string

	// execMu serializes command execution per process.
	execMu sync.Mutex

	stdinMu     sync.Mutex
	stdinClosed bool

	exited   chan struct{}
	exitCode int // valid once exited is closed

	releaseOnce sync.Once
}

// ID returns the opaque unique identifier assigned at launch.
func (p *Process) ID() string { return p.id }

// Path returns the interpreter executable path.
func (p *Process) Path() string { return p.path }

// Flavor returns the detected interpreter flavor.
func (p *Process) Flavor() interp.Flavor { return p.flavor }

// Pid returns the OS process ID, or 0 if unknown.
func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// Created returns the launch timestamp.
func (p *Process) Created() time.Time { return p.created }

// LastActivity returns when output last arrived or a command was last sent.
func (p *Process) LastActivity() time.Time {
	p.actMu.Lock()
	defer p.actMu.Unlock()

	return p.lastActivity
}

// TouchActivity updates the last-activity timestamp.
func (p *Process) TouchActivity() {
	p.actMu.Lock()
	p.lastActivity = time.Now()
	p.actMu.Unlock()
}

// AppendOutput appends a stdout line to the output buffer.
func (p *Process) AppendOutput(line string) {
	p.outMu.Lock()
	p.output.WriteString(line)
	p.output.WriteString("\n")
	p.outMu.Unlock()

	p.TouchActivity()
}

// Output returns the accumulated output.
func (p *Process) Output() string {
	p.outMu.Lock()
	defer p.outMu.Unlock()

	return p.output.String()
}

// ClearOutput discards accumulated output so a previous command's trailing
// output cannot be mistaken for the next command's result.
func (p *Process) ClearOutput() {
	p.outMu.Lock()
	p.output.Reset()
	p.outMu.Unlock()
}

// WriteLine writes a line to the interpreter's stdin and flushes it.
func (p *Process) WriteLine(line string) error {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()

	if p.stdinClosed || p.stdin == nil {
		return io.ErrClosedPipe
	}

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	_, err := io.WriteString(p.stdin, line)

	return err
}

// CloseStdin closes the input pipe. Safe to call more than once.
func (p *Process) CloseStdin() error {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()

	if p.stdinClosed || p.stdin == nil {
		return nil
	}

	p.stdinClosed = true

	return p.stdin.Close()
}

// Exited reports whether the subprocess has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// ExitedChan returns a channel closed when the subprocess exits.
func (p *Process) ExitedChan() <-chan struct{} { return p.exited }

// ExitCode returns the subprocess exit code. Only meaningful once Exited
// reports true; -1 means the exit status could not be determined.
func (p *Process) ExitCode() int {
	select {
	case <-p.exited:
		return p.exitCode
	default:
		return -1
	}
}

// markExited records the exit code and signals waiters. Called exactly
// once by the launcher's waiter goroutine.
func (p *Process) markExited(code int) {
	p.exitCode = code
	close(p.exited)
}

// MarkCapability records that a capability variant was configured.
func (p *Process) MarkCapability(variant string) {
	p.capMu.Lock()
	p.capLoaded = true
	p.capVariant = variant
	p.capMu.Unlock()
}

// Capability reports whether a capability has been configured and which
// variant resolved.
func (p *Process) Capability() (bool, string) {
	p.capMu.Lock()
	defer p.capMu.Unlock()

	return p.capLoaded, p.capVariant
}

// SetMeta stores a metadata key/value pair on the process.
func (p *Process) SetMeta(key, value string) {
	p.metaMu.Lock()

	if p.metadata == nil {
		p.metadata = make(map[string]string, 4)
	}

	p.metadata[key] = value
	p.metaMu.Unlock()
}

// Meta returns a metadata value and whether it was present.
func (p *Process) Meta(key string) (string, bool) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	value, ok := p.metadata[key]

	return value, ok
}

// Metadata returns a copy of the metadata bag.
func (p *Process) Metadata() map[string]string {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	return maps.Clone(p.metadata)
}

// Release closes the input pipe and drops pipe references. Idempotent;
// called on disposal and by the cleanup sweep once the subprocess has
// exited.
func (p *Process) Release() {
	p.releaseOnce.Do(func() {
		_ = p.CloseStdin()
		p.log.Debug("Process released", "id", p.id, "pid", p.Pid())
	})
}
