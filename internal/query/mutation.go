package query

import (
	"context"
	"sync"
	"time"

	"github.com/jmv4/ghlkit/internal/metrics"
)

// MutateFunc executes one write against the platform.
type MutateFunc func(ctx context.Context, input any) (any, error)

// Mutation runs writes and drives the invalidation cascade. Invocations are
// never deduplicated: writes are not idempotent in general, so every call is
// submitted. Pending reflects whether any invocation from this instance is
// still outstanding.
type Mutation struct {
	c    *Cache
	fn   MutateFunc
	opts MutationOptions

	mu      sync.Mutex
	pending int
	data    any
	hasData bool
	err     error
}

// Mutation builds a mutation bound to this cache so successful writes can
// invalidate the declared key prefixes.
func (c *Cache) Mutation(fn MutateFunc, opts MutationOptions) *Mutation {
	if opts.Resource == "" {
		opts.Resource = "unknown"
	}
	return &Mutation{c: c, fn: fn, opts: opts}
}

// Mutate fires the mutation without blocking the caller. Lifecycle callbacks
// and invalidation run asynchronously; the write outlives the caller's ctx.
func (m *Mutation) Mutate(ctx context.Context, input any) {
	detached := context.WithoutCancel(ctx)
	go func() {
		_, _ = m.do(detached, input)
	}()
}

// MutateAsync fires the mutation and yields the result or failure to the
// caller for sequential chaining.
func (m *Mutation) MutateAsync(ctx context.Context, input any) (any, error) {
	return m.do(ctx, input)
}

// Snapshot reports the last outcome and whether any invocation is pending.
func (m *Mutation) Snapshot() MutationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := MutationResult{Err: m.err, Pending: m.pending > 0}
	if m.hasData {
		r.Data = m.data
	}
	return r
}

// Pending reports whether any invocation from this instance is outstanding.
func (m *Mutation) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending > 0
}

func (m *Mutation) do(ctx context.Context, input any) (any, error) {
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()

	start := time.Now()
	data, err := m.fn(ctx, input)
	elapsed := time.Since(start)

	m.mu.Lock()
	m.pending--
	if err != nil {
		m.err = err
	} else {
		m.data = data
		m.hasData = true
		m.err = nil
	}
	m.mu.Unlock()

	if err != nil {
		m.c.metrics.ObserveMutation(m.opts.Resource, metrics.MutationError, elapsed)
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		}
		return nil, err
	}

	m.c.metrics.ObserveMutation(m.opts.Resource, metrics.MutationSuccess, elapsed)
	if m.opts.OnSuccess != nil {
		m.opts.OnSuccess(data)
	}
	if len(m.opts.Invalidate) > 0 {
		m.c.Invalidate(ctx, m.opts.Invalidate...)
	}
	return data, nil
}
