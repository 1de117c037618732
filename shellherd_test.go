package shellherd

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell not available on Windows")
	}
}

func newShellEngine(t *testing.T, extra ...Option) Engine {
	t.Helper()

	opts := append([]Option{
		WithCandidates("sh"),
		WithPollInterval(20 * time.Millisecond),
		WithLaunchGrace(150 * time.Millisecond),
		WithDisposeGrace(time.Second),
	}, extra...)

	eng := New(opts...)

	t.Cleanup(eng.Stop)

	return eng
}

func TestEngineEndToEnd(t *testing.T) {
	requireShell(t)

	eng := newShellEngine(t)
	require.NoError(t, eng.Start())

	p, err := eng.Launch(context.Background())
	require.NoError(t, err)
	require.Positive(t, p.Pid())
	require.Equal(t, 1, eng.ProcessCount())

	out, err := eng.Execute(context.Background(), p, "echo hello", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	require.True(t, eng.Terminate(p, 2*time.Second))
	require.Equal(t, 0, eng.ProcessCount())
}

func TestEngineSessions(t *testing.T) {
	requireShell(t)

	eng := newShellEngine(t)
	require.NoError(t, eng.Start())

	created, err := eng.CreateSession(context.Background(), "vcenter-prod")
	require.NoError(t, err)

	got, ok := eng.GetSession("vcenter-prod")
	require.True(t, ok)
	require.Equal(t, created.ID(), got.ID())

	out, err := eng.Execute(context.Background(), got, "echo persistent", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "persistent", out)

	fromLookup, err := eng.Session("vcenter-prod")
	require.NoError(t, err)
	require.Equal(t, created.ID(), fromLookup.ID())

	require.True(t, eng.DisposeSession("vcenter-prod"))

	_, ok = eng.GetSession("vcenter-prod")
	require.False(t, ok)

	_, err = eng.Session("vcenter-prod")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEngineBootstrapOptions(t *testing.T) {
	requireShell(t)

	eng := newShellEngine(t,
		WithBootstrapStrategies(BootstrapStrategy{
			Name:    "shell",
			Command: "echo 'MODULES_LOADED:shell'",
		}),
		WithBootstrapConfigCommand("echo 'CONFIG_SUCCESS'"),
	)
	require.NoError(t, eng.Start())

	p, err := eng.Launch(context.Background())
	require.NoError(t, err)

	result, err := eng.Bootstrap(context.Background(), p, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "shell", result.Variant)
}

func TestApplyOptions(t *testing.T) {
	env := map[string]string{"NO_COLOR": "1"}

	opts := applyOptions([]Option{
		WithCandidates("pwsh", "powershell"),
		WithExtraArgs("-NoLogo"),
		WithEchoFormat("Write-Output '%s'"),
		WithExitCommand("exit"),
		WithEnv(env),
		WithCwd("/tmp"),
		WithPollInterval(50 * time.Millisecond),
		WithStallWarning(10 * time.Second),
		WithLaunchGrace(time.Second),
		WithCleanupInterval(time.Minute),
		WithDisposeGrace(2 * time.Second),
		WithBootstrapTimeout(90 * time.Second),
	})

	require.Equal(t, []string{"pwsh", "powershell"}, opts.cfg.Candidates)
	require.Equal(t, []string{"-NoLogo"}, opts.cfg.ExtraArgs)
	require.Equal(t, "Write-Output '%s'", opts.cfg.EchoFormat)
	require.Equal(t, "exit", opts.cfg.ExitCommand)
	require.Equal(t, env, opts.cfg.Env)
	require.Equal(t, "/tmp", opts.cfg.Cwd)
	require.Equal(t, 50*time.Millisecond, opts.cfg.PollInterval)
	require.Equal(t, 10*time.Second, opts.cfg.StallWarnAfter)
	require.Equal(t, time.Second, opts.cfg.LaunchGrace)
	require.Equal(t, time.Minute, opts.cfg.CleanupInterval)
	require.Equal(t, 2*time.Second, opts.cfg.DisposeGrace)
	require.Equal(t, 90*time.Second, opts.cfg.BootstrapTimeout)
}

func TestErrorTypesImplementEngineError(t *testing.T) {
	for _, err := range []error{
		&InterpreterNotFoundError{},
		&LaunchError{},
		&PipeClosedError{},
		&ProcessExitedError{},
		&CommandTimeoutError{},
		&BootstrapError{},
	} {
		_, ok := err.(EngineError)
		require.True(t, ok, "%T should implement EngineError", err)
	}
}
