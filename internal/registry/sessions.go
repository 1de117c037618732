package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/virtengine/shellherd/internal/proc"
)

// Sessions maps caller-chosen keys to processes meant to outlive a single
// command. Operations on the same key serialize through a per-key mutex;
// operations on different keys proceed concurrently.
type Sessions struct {
	log *slog.Logger

	// onRemove is invoked for every process that leaves the registry
	// (replaced, disposed, pruned, or swept). The engine uses it to drop
	// the process from the active tracker.
	onRemove func(p *proc.Process)

	mu      sync.Mutex
	entries map[string]*proc.Process
	keyMu   map[string]*keyLock
}

// keyLock is a per-key mutex with a holder/waiter count so unused locks
// can be pruned once their key has no entry.
type keyLock struct {
	sync.Mutex
	refs int
}

// NewSessions creates an empty session registry. onRemove may be nil.
func NewSessions(log *slog.Logger, onRemove func(p *proc.Process)) *Sessions {
	return &Sessions{
		log:      log.With("component", "sessions"),
		onRemove: onRemove,
		entries:  make(map[string]*proc.Process, 8),
		keyMu:    make(map[string]*keyLock, 8),
	}
}

// acquireKey locks the key's mutex, creating it on first use.
func (s *Sessions) acquireKey(key string) *keyLock {
	s.mu.Lock()

	kl, ok := s.keyMu[key]
	if !ok {
		kl = &keyLock{}
		s.keyMu[key] = kl
	}

	kl.refs++
	s.mu.Unlock()

	kl.Lock()

	return kl
}

// releaseKey unlocks the key's mutex and prunes it if nothing else holds
// or waits on it.
func (s *Sessions) releaseKey(key string, kl *keyLock) {
	kl.Unlock()

	s.mu.Lock()
	kl.refs--
	s.pruneKeyLocked(key)
	s.mu.Unlock()
}

// pruneKeyLocked drops the key's mutex once it has no holders or waiters
// and the key has no entry, so the lock map cannot grow without bound
// across distinct session keys. Caller holds s.mu.
func (s *Sessions) pruneKeyLocked(key string) {
	if kl, ok := s.keyMu[key]; ok && kl.refs == 0 {
		if _, live := s.entries[key]; !live {
			delete(s.keyMu, key)
		}
	}
}

func (s *Sessions) removed(p *proc.Process) {
	if s.onRemove != nil {
		s.onRemove(p)
	}
}

// CreateOrReplace installs a freshly created process for the key. Any
// prior entry is terminated and disposed first, graceful up to grace, then
// force-killed.
func (s *Sessions) CreateOrReplace(
	key string,
	grace time.Duration,
	factory func() (*proc.Process, error),
) (*proc.Process, error) {
	kl := s.acquireKey(key)
	defer s.releaseKey(key, kl)

	s.mu.Lock()
	old := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if old != nil {
		s.log.Info("Replacing session process", "key", key, "old_id", old.ID())
		old.Terminate(grace)
		s.removed(old)
	}

	p, err := factory()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries[key] = p
	s.mu.Unlock()

	s.log.Debug("Session created", "key", key, "id", p.ID(), "pid", p.Pid())

	return p, nil
}

// Get returns the process for the key, treating an exited process as
// absent. Exited entries are pruned on lookup.
func (s *Sessions) Get(key string) (*proc.Process, bool) {
	s.mu.Lock()
	p, ok := s.entries[key]

	var stale *proc.Process

	if ok && p.Exited() {
		delete(s.entries, key)
		s.pruneKeyLocked(key)

		stale = p
		ok = false
		p = nil
	}

	s.mu.Unlock()

	if stale != nil {
		stale.Release()
		s.removed(stale)
	}

	return p, ok
}

// Dispose terminates and removes the entry for the key. Returns false if
// no entry existed.
func (s *Sessions) Dispose(key string, grace time.Duration) bool {
	kl := s.acquireKey(key)
	defer s.releaseKey(key, kl)

	s.mu.Lock()
	p, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if !ok {
		return false
	}

	p.Terminate(grace)
	s.removed(p)
	s.log.Debug("Session disposed", "key", key, "id", p.ID())

	return true
}

// Sweep removes entries whose subprocess has exited. Live processes are
// never removed.
func (s *Sessions) Sweep() {
	s.mu.Lock()

	var stale []*proc.Process

	for key, p := range s.entries {
		if p.Exited() {
			delete(s.entries, key)
			s.pruneKeyLocked(key)

			stale = append(stale, p)

			s.log.Debug("Swept exited session", "key", key, "id", p.ID())
		}
	}

	s.mu.Unlock()

	for _, p := range stale {
		p.Release()
		s.removed(p)
	}
}

// Clear removes every entry and returns the removed processes without
// terminating them. Used by the shutdown path, which owns termination.
func (s *Sessions) Clear() []*proc.Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	procs := make([]*proc.Process, 0, len(s.entries))
	for key, p := range s.entries {
		procs = append(procs, p)
		delete(s.entries, key)
		s.pruneKeyLocked(key)
	}

	return procs
}

// Len returns the number of session entries.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
