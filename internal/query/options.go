package query

import (
	"log/slog"
	"time"

	"github.com/jmv4/ghlkit/internal/metrics"
)

// Options configures a Cache instance. The cache is an explicit object so
// tests and embedders can run isolated instances side by side; there is no
// package-level singleton.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	// GracePeriod is how long an entry with zero subscribers is retained
	// before eviction. Rapid unmount/remount cycles within the window reuse
	// the cached value instead of refetching. Defaults to 30s.
	GracePeriod time.Duration

	// Snapshots, when set, seeds unseen keys from a persistent store and
	// mirrors resolved values back into it so a restarted process serves
	// last-known data stale-while-revalidate.
	Snapshots   SnapshotStore
	SnapshotTTL time.Duration
}

// QueryOptions is the per-subscription tuning surface every hook accepts.
type QueryOptions struct {
	// Enabled gates execution. nil means true (default); a disabled query
	// never reaches the fetch function and suppresses polling.
	Enabled *bool

	// RefetchInterval schedules a background refetch every interval while
	// the subscription is open and enabled. Zero disables polling.
	RefetchInterval time.Duration

	// Resource labels metrics and log lines for this key family.
	Resource string

	// Decode rehydrates a snapshot payload into the hook's value type. Only
	// consulted when the cache was built with a SnapshotStore.
	Decode func([]byte) (any, error)
}

func (o QueryOptions) enabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// Bool returns a pointer for use in option literals.
func Bool(v bool) *bool {
	return &v
}

// MutationOptions carries the lifecycle hooks and invalidation targets for a
// Mutation instance.
type MutationOptions struct {
	OnSuccess func(any)
	OnError   func(error)

	// Invalidate lists key prefixes marked stale after a successful
	// mutation. Subscribed entries under those prefixes refetch.
	Invalidate []Key

	// Resource labels metrics and log lines.
	Resource string
}

// Result is the generic shape a query subscription exposes. Hooks project it
// into domain-specific fields.
type Result struct {
	Data    any
	Err     error
	Loading bool
}

// MutationResult reflects the last outcome of a Mutation instance.
type MutationResult struct {
	Data    any
	Err     error
	Pending bool
}

// Data extracts a typed value from a generic result. The second return is
// false when the result holds no data or a different type.
func Data[T any](r Result) (T, bool) {
	v, ok := r.Data.(T)
	return v, ok
}
