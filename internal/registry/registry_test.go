package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtengine/shellherd/internal/config"
	"github.com/virtengine/shellherd/internal/proc"
)

func nopLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell not available on Windows")
	}
}

// launchShell starts a real shell process for registry tests to track.
func launchShell(t *testing.T) *proc.Process {
	t.Helper()

	cfg := (&config.Options{
		Candidates:  []string{"sh"},
		LaunchGrace: 150 * time.Millisecond,
	}).Normalize()

	p, err := proc.NewLauncher(cfg.Logger, cfg).Launch(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		p.Terminate(time.Second)
	})

	return p
}

// removeRecorder captures onRemove callbacks in order.
type removeRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *removeRecorder) record(p *proc.Process) {
	r.mu.Lock()
	r.ids = append(r.ids, p.ID())
	r.mu.Unlock()
}

func (r *removeRecorder) removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.ids...)
}

func TestTrackerAddRemoveCount(t *testing.T) {
	requireShell(t)

	tracker := NewTracker()
	require.Equal(t, 0, tracker.Count())

	first := launchShell(t)
	second := launchShell(t)

	tracker.Add(first)
	tracker.Add(second)
	require.Equal(t, 2, tracker.Count())

	tracker.Remove(first.ID())
	require.Equal(t, 1, tracker.Count())

	// Removing an unknown ID is a no-op.
	tracker.Remove("no-such-id")
	require.Equal(t, 1, tracker.Count())
}

func TestTrackerSnapshot(t *testing.T) {
	requireShell(t)

	tracker := NewTracker()
	first := launchShell(t)
	second := launchShell(t)

	tracker.Add(first)
	tracker.Add(second)

	snapshot := tracker.Snapshot()
	require.Len(t, snapshot, 2)

	ids := []string{snapshot[0].ID(), snapshot[1].ID()}
	require.ElementsMatch(t, []string{first.ID(), second.ID()}, ids)
}

func TestSessionsCreateOrReplaceDisposesPrevious(t *testing.T) {
	requireShell(t)

	recorder := &removeRecorder{}
	sessions := NewSessions(nopLog(), recorder.record)

	first, err := sessions.CreateOrReplace("vcenter", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	second, err := sessions.CreateOrReplace("vcenter", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	require.NotEqual(t, first.ID(), second.ID())
	require.True(t, first.Exited(), "replaced session process must be terminated")
	require.False(t, second.Exited())
	require.Equal(t, []string{first.ID()}, recorder.removed())
	require.Equal(t, 1, sessions.Len())
}

func TestSessionsCreateOrReplaceFactoryError(t *testing.T) {
	requireShell(t)

	recorder := &removeRecorder{}
	sessions := NewSessions(nopLog(), recorder.record)

	first, err := sessions.CreateOrReplace("vcenter", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	_, err = sessions.CreateOrReplace("vcenter", time.Second, func() (*proc.Process, error) {
		return nil, fmt.Errorf("launch failed")
	})
	require.Error(t, err)

	// The old entry is gone even though the replacement failed.
	require.True(t, first.Exited())
	require.Equal(t, 0, sessions.Len())

	_, ok := sessions.Get("vcenter")
	require.False(t, ok)
}

func TestSessionsGetReturnsLiveProcess(t *testing.T) {
	requireShell(t)

	sessions := NewSessions(nopLog(), nil)

	created, err := sessions.CreateOrReplace("esxi-01", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	got, ok := sessions.Get("esxi-01")
	require.True(t, ok)
	require.Equal(t, created.ID(), got.ID())
}

func TestSessionsGetPrunesExited(t *testing.T) {
	requireShell(t)

	recorder := &removeRecorder{}
	sessions := NewSessions(nopLog(), recorder.record)

	created, err := sessions.CreateOrReplace("esxi-01", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	created.Kill()

	select {
	case <-created.ExitedChan():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after kill")
	}

	_, ok := sessions.Get("esxi-01")
	require.False(t, ok, "an exited session process is treated as absent")
	require.Equal(t, 0, sessions.Len())
	require.Equal(t, []string{created.ID()}, recorder.removed())
}

func TestSessionsDispose(t *testing.T) {
	requireShell(t)

	sessions := NewSessions(nopLog(), nil)

	created, err := sessions.CreateOrReplace("vcenter", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	require.True(t, sessions.Dispose("vcenter", time.Second))
	require.True(t, created.Exited())
	require.Equal(t, 0, sessions.Len())

	require.False(t, sessions.Dispose("vcenter", time.Second))
	require.False(t, sessions.Dispose("never-existed", time.Second))
}

func TestSessionsSweepRemovesOnlyExited(t *testing.T) {
	requireShell(t)

	recorder := &removeRecorder{}
	sessions := NewSessions(nopLog(), recorder.record)

	dead, err := sessions.CreateOrReplace("dead", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	live, err := sessions.CreateOrReplace("live", time.Second, func() (*proc.Process, error) {
		return launchShell(t), nil
	})
	require.NoError(t, err)

	dead.Kill()

	select {
	case <-dead.ExitedChan():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after kill")
	}

	sessions.Sweep()

	require.Equal(t, 1, sessions.Len())
	require.Equal(t, 1, keyLockCount(sessions), "swept key must not retain its mutex")
	require.Equal(t, []string{dead.ID()}, recorder.removed())

	got, ok := sessions.Get("live")
	require.True(t, ok)
	require.Equal(t, live.ID(), got.ID())
}

// keyLockCount reports how many per-key mutexes the registry holds.
func keyLockCount(s *Sessions) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.keyMu)
}

func TestSessionsKeyMutexPruned(t *testing.T) {
	requireShell(t)

	sessions := NewSessions(nopLog(), nil)

	for _, key := range []string{"a", "b"} {
		_, err := sessions.CreateOrReplace(key, time.Second, func() (*proc.Process, error) {
			return launchShell(t), nil
		})
		require.NoError(t, err)
	}

	require.Equal(t, 2, keyLockCount(sessions))

	require.True(t, sessions.Dispose("a", time.Second))
	require.Equal(t, 1, keyLockCount(sessions), "disposed key must not retain its mutex")

	cleared := sessions.Clear()
	require.Len(t, cleared, 1)
	require.Equal(t, 0, keyLockCount(sessions), "cleared keys must not retain their mutexes")

	for _, p := range cleared {
		p.Terminate(time.Second)
	}
}

func TestSessionsKeyMutexPrunedOnFactoryError(t *testing.T) {
	sessions := NewSessions(nopLog(), nil)

	_, err := sessions.CreateOrReplace("ghost", time.Second, func() (*proc.Process, error) {
		return nil, fmt.Errorf("launch failed")
	})
	require.Error(t, err)
	require.Equal(t, 0, keyLockCount(sessions))
}

func TestSessionsClearReturnsWithoutTerminating(t *testing.T) {
	requireShell(t)

	sessions := NewSessions(nopLog(), nil)

	for _, key := range []string{"a", "b"} {
		_, err := sessions.CreateOrReplace(key, time.Second, func() (*proc.Process, error) {
			return launchShell(t), nil
		})
		require.NoError(t, err)
	}

	cleared := sessions.Clear()
	require.Len(t, cleared, 2)
	require.Equal(t, 0, sessions.Len())

	for _, p := range cleared {
		require.False(t, p.Exited(), "Clear leaves termination to the caller")
	}
}
