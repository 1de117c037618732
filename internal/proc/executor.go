package proc

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/virtengine/shellherd/internal/config"
	"github.com/virtengine/shellherd/internal/errors"
)

// markerPrefix is the fixed template for completion markers. The random
// suffix makes each marker unique per invocation so a marker echoed by a
// previous command can never terminate a later wait.
const markerPrefix = "END_COMMAND_"

// Executor sends one command to a Process and waits for its completion
// marker to appear in the accumulated output.
//
// The underlying channel is an unstructured line stream shared by whatever
// the interpreter prints, so the marker convention is the only reliable
// way to delimit one command's output.
type Executor struct {
	log            *slog.Logger
	pollInterval   time.Duration
	stallWarnAfter time.Duration
}

// NewExecutor creates an executor with the configured poll and stall
// intervals.
func NewExecutor(log *slog.Logger, cfg *config.Options) *Executor {
	return &Executor{
		log:            log.With("component", "executor"),
		pollInterval:   cfg.PollInterval,
		stallWarnAfter: cfg.StallWarnAfter,
	}
}

// Execute runs one command against the process and returns its output with
// the completion marker removed and surrounding whitespace trimmed.
//
// Commands against the same process serialize on the process's execution
// lock. On timeout the subprocess is left running; whether to terminate it
// afterwards is the caller's decision, since a slow command may be polled
// again. Note that a timed-out command's eventual output is discarded by
// the next command's buffer clear, so callers that do not terminate after
// a timeout accept that hazard.
func (x *Executor) Execute(
	ctx context.Context,
	p *Process,
	command string,
	timeout time.Duration,
) (string, error) {
	if p == nil {
		return "", errors.ErrNilProcess
	}

	p.execMu.Lock()
	defer p.execMu.Unlock()

	if p.Exited() {
		return "", &errors.ProcessExitedError{Pid: p.Pid(), ExitCode: p.ExitCode()}
	}

	// Drop any trailing output from the previous command before sending.
	p.ClearOutput()

	marker := markerPrefix + ulid.Make().String()
	payload := command + "\n" + fmt.Sprintf(p.echoFormat, marker)

	x.log.Debug("Sending command", "id", p.ID(), "pid", p.Pid(), "marker", marker)

	if err := p.WriteLine(payload); err != nil {
		if isPipeClosed(err) {
			return "", &errors.PipeClosedError{Pid: p.Pid(), Err: err}
		}

		return "", fmt.Errorf("write command to process %d: %w", p.Pid(), err)
	}

	p.TouchActivity()

	start := time.Now()
	lastLen := 0
	lastChange := start
	warned := false

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(x.pollInterval):
		}

		out := p.Output()

		if strings.Contains(out, marker) {
			p.TouchActivity()
			x.log.Debug("Command completed", "id", p.ID(), "elapsed", time.Since(start))

			return extractResult(out, marker), nil
		}

		if p.Exited() {
			// The marker may have landed between the read above and the
			// exit check; read once more before failing.
			if out := p.Output(); strings.Contains(out, marker) {
				p.TouchActivity()

				return extractResult(out, marker), nil
			}

			return "", &errors.ProcessExitedError{Pid: p.Pid(), ExitCode: p.ExitCode()}
		}

		now := time.Now()

		if len(out) != lastLen {
			lastLen = len(out)
			lastChange = now
			warned = false
		}

		if !warned && now.Sub(lastChange) > x.stallWarnAfter {
			// Advisory only: some commands legitimately produce no
			// intermediate output.
			x.log.Warn("Command possibly hanging, no output change",
				"id", p.ID(),
				"pid", p.Pid(),
				"quiet_for", now.Sub(lastChange).Round(time.Second),
				"elapsed", now.Sub(start).Round(time.Second),
			)

			warned = true
		}

		if elapsed := now.Sub(start); elapsed > timeout {
			x.log.Warn("Command timed out, subprocess left running",
				"id", p.ID(), "pid", p.Pid(), "timeout", timeout)

			return "", &errors.CommandTimeoutError{
				Pid:     p.Pid(),
				Timeout: timeout,
				Elapsed: elapsed,
			}
		}
	}
}

// extractResult strips the marker (and its line) from the accumulated
// output and trims surrounding whitespace.
func extractResult(out, marker string) string {
	out = strings.Replace(out, marker, "", 1)

	return strings.TrimSpace(out)
}

// isPipeClosed reports whether a stdin write failed because the subprocess
// died and closed its end of the pipe.
func isPipeClosed(err error) bool {
	return stderrors.Is(err, io.ErrClosedPipe) ||
		stderrors.Is(err, os.ErrClosed) ||
		stderrors.Is(err, syscall.EPIPE)
}
