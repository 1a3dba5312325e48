package query

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memorySnapshots struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]memorySnapshot
}

type memorySnapshot struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemorySnapshots builds an in-process snapshot store. ttl is the
// fallback when Store is called with a non-positive duration.
func NewMemorySnapshots(ttl time.Duration) SnapshotStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &memorySnapshots{ttl: ttl, entries: make(map[string]memorySnapshot)}
}

func (s *memorySnapshots) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(snap.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(snap.payload))
	copy(out, snap.payload)
	return out, true, nil
}

func (s *memorySnapshots) Store(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memorySnapshot{payload: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *memorySnapshots) DeletePrefix(_ context.Context, prefix string) error {
	if prefix == "" {
		return nil
	}
	extended := prefix + keySep
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if key == prefix || strings.HasPrefix(key, extended) {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *memorySnapshots) Close(context.Context) error {
	return nil
}
