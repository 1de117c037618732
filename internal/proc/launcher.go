package proc

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/virtengine/shellherd/internal/config"
	"github.com/virtengine/shellherd/internal/errors"
	"github.com/virtengine/shellherd/internal/interp"
)

// maxScanTokenSize is the maximum buffer size for reading interpreter
// output lines.
const maxScanTokenSize = 1024 * 1024 // 1MB

// Launcher starts interpreter subprocesses. It tries resolved candidates
// in order; a candidate that starts but exits within the launch grace
// period is treated as failed, not fatal, and the next candidate is tried.
type Launcher struct {
	log      *slog.Logger
	cfg      *config.Options
	resolver *interp.Resolver
}

// NewLauncher creates a launcher over the configured candidate list.
func NewLauncher(log *slog.Logger, cfg *config.Options) *Launcher {
	return &Launcher{
		log:      log.With("component", "launcher"),
		cfg:      cfg,
		resolver: interp.NewResolver(log, cfg.Candidates),
	}
}

// Launch starts one interpreter subprocess and returns its handle.
//
// Returns InterpreterNotFoundError if no candidate resolves, or
// LaunchError carrying every per-candidate failure if all resolved
// candidates fail to start.
func (l *Launcher) Launch(ctx context.Context) (*Process, error) {
	paths, err := l.resolver.ResolveAll()
	if err != nil {
		return nil, err
	}

	attempts := make(map[string]error, len(paths))

	for _, path := range paths {
		p, err := l.startOne(ctx, path)
		if err != nil {
			l.log.Warn("Interpreter candidate failed", "path", path, "error", err)

			attempts[path] = err

			continue
		}

		l.log.Info("Interpreter started", "id", p.ID(), "path", path, "pid", p.Pid())

		return p, nil
	}

	return nil, &errors.LaunchError{Attempts: attempts}
}

// startOne spawns a single candidate: no profile script, interactive
// stdin command mode, all streams piped, no visible window, working
// directory inherited unless configured.
func (l *Launcher) startOne(ctx context.Context, path string) (*Process, error) {
	args := interp.BuildArgs(path, l.cfg.ExtraArgs)

	//nolint:gosec // G204: spawning a caller-configured interpreter is the point of this package
	cmd := exec.Command(path, args...)
	cmd.Dir = l.cfg.Cwd
	cmd.Env = buildEnv(l.cfg.Env)
	cmd.SysProcAttr = sysProcAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	now := time.Now()
	p := &Process{
		id:           ulid.Make().String(),
		path:         path,
		flavor:       interp.Detect(path),
		log:          l.log,
		cmd:          cmd,
		stdin:        stdin,
		echoFormat:   interp.EchoFormat(path, l.cfg.EchoFormat),
		exitCmd:      interp.ExitCommand(path, l.cfg.ExitCommand),
		created:      now,
		lastActivity: now,
		exited:       make(chan struct{}),
	}

	// Line-oriented readers. Stdout feeds the output buffer used for
	// marker matching; stderr is surfaced to the observability callback
	// so it cannot corrupt completion detection.
	var pumps errgroup.Group

	pumps.Go(func() error {
		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		for scanner.Scan() {
			p.AppendOutput(scanner.Text())
		}

		if err := scanner.Err(); err != nil {
			l.log.Debug("Stdout scanner stopped", "id", p.id, "error", err)
		}

		return nil
	})

	pumps.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()

			if l.cfg.Stderr != nil {
				l.cfg.Stderr(line)
			} else {
				l.log.Debug("Interpreter stderr", "id", p.id, "line", line)
			}
		}

		if err := scanner.Err(); err != nil {
			l.log.Debug("Stderr scanner stopped", "id", p.id, "error", err)
		}

		return nil
	})

	// Waiter: pipe reads must complete before Wait (os/exec contract).
	go func() {
		_ = pumps.Wait()

		code := 0

		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if stderrors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}

		l.log.Debug("Interpreter exited", "id", p.id, "pid", p.Pid(), "exit_code", code)
		p.markExited(code)
	}()

	// Confirm the process survives the launch grace period. An immediate
	// exit fails this candidate only.
	select {
	case <-p.ExitedChan():
		p.Release()

		return nil, fmt.Errorf("interpreter exited immediately (exit code %d)", p.ExitCode())

	case <-ctx.Done():
		p.Kill()
		p.Release()

		return nil, ctx.Err()

	case <-time.After(l.cfg.LaunchGrace):
	}

	return p, nil
}

// buildEnv merges configured variables over the inherited environment.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}

	return env
}
