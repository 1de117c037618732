package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtengine/shellherd/internal/proc"
)

func nopLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedRunner returns canned output per command and records what ran.
type scriptedRunner struct {
	outputs map[string]string
	errs    map[string]error
	ran     []string
}

func (r *scriptedRunner) Run(
	_ context.Context,
	_ *proc.Process,
	command string,
	_ time.Duration,
) (string, error) {
	r.ran = append(r.ran, command)

	if err, ok := r.errs[command]; ok {
		return "", err
	}

	return r.outputs[command], nil
}

func newBootstrapper(runner Runner, strategies []Strategy, configCommand string) *Bootstrapper {
	return New(nopLog(), runner, strategies, configCommand, time.Minute)
}

func TestBootstrapBypass(t *testing.T) {
	runner := &scriptedRunner{}
	b := newBootstrapper(runner, DefaultStrategies, "")
	p := &proc.Process{}

	result := b.Bootstrap(context.Background(), p, true)

	require.True(t, result.Success)
	require.Equal(t, BypassVariant, result.Variant)
	require.NotEmpty(t, result.Warnings)
	require.Empty(t, runner.ran, "bypass must not send any commands")

	configured, variant := p.Capability()
	require.True(t, configured)
	require.Equal(t, BypassVariant, variant)
}

func TestBootstrapFirstStrategySucceeds(t *testing.T) {
	strategies := []Strategy{
		{Name: "full", Command: "load-full"},
		{Name: "core", Command: "load-core"},
	}

	runner := &scriptedRunner{
		outputs: map[string]string{
			"load-full": "some noise\nMODULES_LOADED:full\n",
			"configure": "CONFIG_SUCCESS\n",
		},
	}

	b := newBootstrapper(runner, strategies, "configure")
	p := &proc.Process{}

	result := b.Bootstrap(context.Background(), p, false)

	require.True(t, result.Success)
	require.Equal(t, "full", result.Variant)
	require.Empty(t, result.Warnings)
	require.Equal(t, []string{"load-full", "configure"}, runner.ran)

	configured, variant := p.Capability()
	require.True(t, configured)
	require.Equal(t, "full", variant)
}

func TestBootstrapFallsBackToNextStrategy(t *testing.T) {
	strategies := []Strategy{
		{Name: "full", Command: "load-full"},
		{Name: "core", Command: "load-core"},
	}

	runner := &scriptedRunner{
		outputs: map[string]string{
			"load-full": "Import-Module : not found\n",
			"load-core": "MODULES_LOADED:core\n",
			"configure": "CONFIG_SUCCESS\n",
		},
	}

	b := newBootstrapper(runner, strategies, "configure")

	result := b.Bootstrap(context.Background(), &proc.Process{}, false)

	require.True(t, result.Success)
	require.Equal(t, "core", result.Variant)
	// The failed first attempt is recorded even though bootstrap succeeded.
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "full")
}

func TestBootstrapAllStrategiesFail(t *testing.T) {
	strategies := []Strategy{
		{Name: "full", Command: "load-full"},
		{Name: "core", Command: "load-core"},
	}

	runner := &scriptedRunner{
		outputs: map[string]string{"load-full": "nothing useful"},
		errs:    map[string]error{"load-core": fmt.Errorf("process 123 exited (exit code 1)")},
	}

	b := newBootstrapper(runner, strategies, "configure")
	p := &proc.Process{}

	result := b.Bootstrap(context.Background(), p, false)

	require.False(t, result.Success)
	require.Empty(t, result.Variant)
	require.Len(t, result.Errors, 2)

	configured, _ := p.Capability()
	require.False(t, configured)

	// Configuration must not run when activation failed.
	require.NotContains(t, runner.ran, "configure")
}

func TestBootstrapConfigSentinelMissingIsWarning(t *testing.T) {
	strategies := []Strategy{{Name: "full", Command: "load-full"}}

	runner := &scriptedRunner{
		outputs: map[string]string{
			"load-full": "MODULES_LOADED:full\n",
			"configure": "settings applied, no sentinel\n",
		},
	}

	b := newBootstrapper(runner, strategies, "configure")

	result := b.Bootstrap(context.Background(), &proc.Process{}, false)

	require.True(t, result.Success, "missing CONFIG_SUCCESS is soft")
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], ConfigSuccessSentinel)
}

func TestBootstrapConfigErrorIsWarning(t *testing.T) {
	strategies := []Strategy{{Name: "full", Command: "load-full"}}

	runner := &scriptedRunner{
		outputs: map[string]string{"load-full": "MODULES_LOADED:full\n"},
		errs:    map[string]error{"configure": fmt.Errorf("command timed out")},
	}

	b := newBootstrapper(runner, strategies, "configure")

	result := b.Bootstrap(context.Background(), &proc.Process{}, false)

	require.True(t, result.Success)
	require.Len(t, result.Warnings, 1)
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
		ok   bool
	}{
		{"plain", "MODULES_LOADED:VMware.PowerCLI", "VMware.PowerCLI", true},
		{"embedded", "noise\nMODULES_LOADED:core\ntrailing", "core", true},
		{"trimmed", "MODULES_LOADED:  core  \n", "core", true},
		{"absent", "no sentinel here", "", false},
		{"empty variant", "MODULES_LOADED:\n", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variant, ok := parseVariant(tt.out)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, variant)
		})
	}
}
