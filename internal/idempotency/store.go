// Package idempotency makes round submission at-most-once per round id.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status of a claim.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ErrInFlight is returned when another request holds the claim and did not
// finish within the wait budget.
var ErrInFlight = errors.New("round submission already in progress")

// Record is what a store keeps per round id.
type Record struct {
	Status Status
	Result []byte
}

// Store is a shared claim table. Claim must be an atomic insert-if-absent.
type Store interface {
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Complete(ctx context.Context, id string, result []byte, ttl time.Duration) error
	Load(ctx context.Context, id string) (Record, bool, error)
	Release(ctx context.Context, id string) error
}

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	record  Record
	expires time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(id); ok {
		return false, nil
	}
	s.entries[id] = memoryEntry{record: Record{Status: StatusPending}, expires: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, result []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = memoryEntry{
		record:  Record{Status: StatusCompleted, Result: append([]byte(nil), result...)},
		expires: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	return e.record, ok, nil
}

// Release drops a pending claim. Completed records are kept.
func (s *MemoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(id); ok && e.record.Status == StatusPending {
		delete(s.entries, id)
	}
	return nil
}

// live must be called with mu held.
func (s *MemoryStore) live(id string) (memoryEntry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, id)
		return memoryEntry{}, false
	}
	return e, true
}
