package query

import (
	"context"
	"time"
)

// SnapshotStore persists resolved query payloads outside the process so a
// restart can serve last-known values stale-while-revalidate. Payloads are
// opaque JSON keyed by the canonical key string; the engine decodes them via
// the subscription's Decode option.
type SnapshotStore interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// DeletePrefix removes the key equal to prefix and every key extending
	// it by further segments.
	DeletePrefix(ctx context.Context, prefix string) error
	Close(ctx context.Context) error
}
