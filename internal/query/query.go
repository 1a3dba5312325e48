package query

import (
	"context"
	"sync"
	"time"
)

// Query is one consumer's subscription to a cache entry. Instances are not
// shared; every hook invocation gets its own handle and must Close it to
// release the subscription.
type Query struct {
	c       *Cache
	e       *entry
	updates chan Result

	mu       sync.Mutex
	opts     QueryOptions
	closed   bool
	pollStop chan struct{}
}

// Key returns the key this subscription is bound to.
func (q *Query) Key() Key {
	return q.e.key
}

// Result snapshots the entry state. A disabled or closed subscription
// observes the absent shape regardless of what the shared entry holds.
func (q *Query) Result() Result {
	q.mu.Lock()
	enabled := q.opts.enabled() && !q.closed
	q.mu.Unlock()
	if !enabled {
		return Result{}
	}
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	return q.e.resultLocked()
}

// Updates delivers a notification after each completed fetch affecting this
// key. The channel keeps only the latest result; Result always reflects
// current state.
func (q *Query) Updates() <-chan Result {
	return q.updates
}

// Wait blocks until the entry holds a settled value or error, or ctx ends.
// Intended for one-shot request/response consumers; long-lived subscribers
// should range over Updates instead.
func (q *Query) Wait(ctx context.Context) Result {
	for {
		q.mu.Lock()
		active := q.opts.enabled() && !q.closed
		q.mu.Unlock()
		if !active {
			return Result{}
		}
		q.c.mu.Lock()
		r := q.e.resultLocked()
		// Settle on the entry's has-data flag, not the value itself; a fetch
		// may legitimately resolve to nil.
		settled := q.e.hasData || q.e.err != nil
		q.c.mu.Unlock()
		if !r.Loading && settled {
			return r
		}
		select {
		case <-ctx.Done():
			return Result{Err: ctx.Err()}
		case <-q.updates:
		}
	}
}

// Refetch forces a fresh fetch regardless of cache freshness and blocks for
// its outcome. Concurrent Refetch calls for the same key share one round
// trip; abandoning the wait via ctx does not cancel the shared fetch.
func (q *Query) Refetch(ctx context.Context) (any, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	if !q.opts.enabled() {
		q.mu.Unlock()
		return nil, Validationf("query: refetch on disabled subscription")
	}
	q.mu.Unlock()

	fl := q.c.begin(q.e, true)
	select {
	case <-fl.done:
		return fl.data, fl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetEnabled flips the execution gate. Enabling issues an immediate fetch
// and restarts polling with a fresh interval timer; disabling stops polling
// at once.
func (q *Query) SetEnabled(v bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	was := q.opts.enabled()
	q.opts.Enabled = &v
	interval := q.opts.RefetchInterval
	q.mu.Unlock()

	if v == was {
		return
	}
	if v {
		q.c.begin(q.e, false)
		if interval > 0 {
			q.startPolling()
		}
		return
	}
	q.stopPolling()
}

// Close releases the subscription. Polling stops immediately; the shared
// entry enters its eviction grace period once the last subscriber leaves.
func (q *Query) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	stop := q.pollStop
	q.pollStop = nil
	q.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	q.c.unsubscribe(q)
}

func (q *Query) startPolling() {
	q.mu.Lock()
	if q.closed || q.pollStop != nil || q.opts.RefetchInterval <= 0 {
		q.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	q.pollStop = stop
	interval := q.opts.RefetchInterval
	q.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				q.c.begin(q.e, false)
			}
		}
	}()
}

func (q *Query) stopPolling() {
	q.mu.Lock()
	stop := q.pollStop
	q.pollStop = nil
	q.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// push hands a completed result to the subscriber, keeping only the latest
// when the consumer lags.
func (q *Query) push(r Result) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.updates <- r:
	default:
		select {
		case <-q.updates:
		default:
		}
		select {
		case q.updates <- r:
		default:
		}
	}
}
