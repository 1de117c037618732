// Package registry provides the concurrency-safe tracking structures for
// managed processes: the active-process set and the named session map.
package registry

import (
	"sync"

	"github.com/virtengine/shellherd/internal/proc"
)

// Tracker is the set of all live managed processes, ad hoc and persistent
// alike, keyed by process ID. It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	procs map[string]*proc.Process
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		procs: make(map[string]*proc.Process, 8),
	}
}

// Add registers a process.
func (t *Tracker) Add(p *proc.Process) {
	t.mu.Lock()
	t.procs[p.ID()] = p
	t.mu.Unlock()
}

// Remove unregisters a process by ID.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	delete(t.procs, id)
	t.mu.Unlock()
}

// Count returns the number of tracked processes.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.procs)
}

// Snapshot returns the tracked processes at this instant. The sweep
// iterates the snapshot so it never holds the lock while terminating or
// releasing a process.
func (t *Tracker) Snapshot() []*proc.Process {
	t.mu.RLock()
	defer t.mu.RUnlock()

	procs := make([]*proc.Process, 0, len(t.procs))
	for _, p := range t.procs {
		procs = append(procs, p)
	}

	return procs
}
