// Package formstate keeps per form instance state between requests and
// guarantees at most one in-flight submission per instance.
package formstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Load when an instance has no saved state.
	ErrNotFound = errors.New("formstate: snapshot not found")

	// ErrLocked is returned by Acquire while another submission holds the instance.
	ErrLocked = errors.New("formstate: instance locked")

	// ErrLockLost is returned by Lock.Refresh once the lock expired or was
	// taken over by another holder.
	ErrLockLost = errors.New("formstate: lock lost")
)

// Snapshot is the persisted view of one form instance.
type Snapshot struct {
	Status    string            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Lock is a held instance lock.
type Lock interface {
	// Refresh pushes the expiry ttl into the future while the lock is still ours.
	Refresh(ctx context.Context, ttl time.Duration) error
	// Release gives the lock back. It is safe to call after the lock expired.
	Release(ctx context.Context) error
}

// Store persists snapshots and hands out per-instance locks.
type Store interface {
	Load(ctx context.Context, id string) (*Snapshot, error)
	Save(ctx context.Context, id string, snap *Snapshot) error
	Delete(ctx context.Context, id string) error
	Acquire(ctx context.Context, id string, ttl time.Duration) (Lock, error)
}

type memoryEntry struct {
	snap    Snapshot
	expires time.Time
}

type memoryLock struct {
	token   string
	expires time.Time
}

// MemoryStore is a process-local Store for single instance deployments and tests.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	snaps map[string]memoryEntry
	locks map[string]memoryLock
}

// NewMemoryStore creates a store whose snapshots expire after ttl (0 keeps them).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:   ttl,
		now:   time.Now,
		snaps: make(map[string]memoryEntry),
		locks: make(map[string]memoryLock),
	}
}

// Load returns a copy of the saved snapshot.
func (s *MemoryStore) Load(_ context.Context, id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.snaps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expires.IsZero() && s.now().After(entry.expires) {
		delete(s.snaps, id)
		return nil, ErrNotFound
	}
	snap := entry.snap
	snap.Fields = copyFields(entry.snap.Fields)
	return &snap, nil
}

// Save stores a copy of snap.
func (s *MemoryStore) Save(_ context.Context, id string, snap *Snapshot) error {
	if snap == nil {
		return errors.New("formstate: nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{snap: *snap}
	entry.snap.Fields = copyFields(snap.Fields)
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.snaps[id] = entry
	return nil
}

// Delete forgets an instance.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.snaps, id)
	s.mu.Unlock()
	return nil
}

// Acquire takes the instance lock for at most ttl.
func (s *MemoryStore) Acquire(_ context.Context, id string, ttl time.Duration) (Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if held, ok := s.locks[id]; ok && !held.expired(now) {
		return nil, ErrLocked
	}
	lock := memoryLock{token: uuid.NewString()}
	if ttl > 0 {
		lock.expires = now.Add(ttl)
	}
	s.locks[id] = lock
	return &memoryHandle{store: s, id: id, token: lock.token}, nil
}

// Sweep drops expired snapshots and locks and reports how many it removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.snaps {
		if !entry.expires.IsZero() && now.After(entry.expires) {
			delete(s.snaps, id)
			removed++
		}
	}
	for id, lock := range s.locks {
		if lock.expired(now) {
			delete(s.locks, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (l memoryLock) expired(now time.Time) bool {
	return !l.expires.IsZero() && !now.Before(l.expires)
}

type memoryHandle struct {
	store *MemoryStore
	id    string
	token string
}

func (h *memoryHandle) Refresh(_ context.Context, ttl time.Duration) error {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	current, ok := s.locks[h.id]
	if !ok || current.token != h.token || current.expired(now) {
		return ErrLockLost
	}
	current.expires = time.Time{}
	if ttl > 0 {
		current.expires = now.Add(ttl)
	}
	s.locks[h.id] = current
	return nil
}

func (h *memoryHandle) Release(context.Context) error {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.locks[h.id]; ok && current.token == h.token {
		delete(s.locks, h.id)
	}
	return nil
}

func copyFields(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
