// Package query implements the fetch/cache/invalidate engine underneath the
// platform data hooks: key-addressed result caching, in-flight request
// deduplication, conditional execution, polling, and prefix invalidation
// cascades triggered by mutations.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmv4/ghlkit/internal/metrics"
)

// ErrClosed is returned by fetch paths entered after the cache shut down.
var ErrClosed = errors.New("query: cache closed")

// FetchFunc executes one read against the platform. The closure binds the
// client and request parameters; the engine stays parametric over what is
// actually fetched.
type FetchFunc func(ctx context.Context) (any, error)

// Cache owns the shared entry map. One instance is typically wired at process
// start and handed to every hook; tests build throwaway instances.
type Cache struct {
	logger   *slog.Logger
	metrics  *metrics.Recorder
	grace    time.Duration
	store    SnapshotStore
	storeTTL time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// entry is the per-key cache state. All fields are guarded by Cache.mu.
type entry struct {
	key      Key
	fetch    FetchFunc
	resource string
	decode   func([]byte) (any, error)

	data      any
	hasData   bool
	err       error
	stale     bool
	fetchedAt time.Time

	// gen tags the current fetch generation. Results landing with an older
	// tag were superseded by a forced refetch and are discarded.
	gen      uint64
	inflight *inflight

	seedTried   bool
	subscribers map[*Query]struct{}
	evict       *time.Timer
}

// inflight represents one deduplicated fetch round trip. Waiters block on
// done; data/err are valid only after done closes.
type inflight struct {
	gen    uint64
	forced bool
	done   chan struct{}
	data   any
	err    error
}

// New builds an isolated cache instance.
func New(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * time.Second
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 5 * time.Minute
	}
	return &Cache{
		logger:   opts.Logger.With(slog.String("agent", "query_cache")),
		metrics:  opts.Metrics,
		grace:    opts.GracePeriod,
		store:    opts.Snapshots,
		storeTTL: opts.SnapshotTTL,
		entries:  make(map[string]*entry),
	}
}

// Subscribe attaches a consumer to key. A cached value is observable
// immediately through Result; a fetch is issued when the entry is empty or
// stale and the subscription is enabled. Callers must Close the returned
// Query when done, and treat a changed key as a fresh Subscribe against a
// different entry.
func (c *Cache) Subscribe(key Key, fetch FetchFunc, opts QueryOptions) *Query {
	q := &Query{c: c, opts: opts, updates: make(chan Result, 1)}

	c.mu.Lock()
	e := c.entryLocked(key)
	e.fetch = fetch
	if opts.Resource != "" {
		e.resource = opts.Resource
	}
	if opts.Decode != nil {
		e.decode = opts.Decode
	}
	e.subscribers[q] = struct{}{}
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	q.e = e

	seed := c.store != nil && !e.hasData && !e.seedTried
	if seed {
		e.seedTried = true
	}
	enabled := opts.enabled()
	needFetch := enabled && (!e.hasData || e.stale) && e.inflight == nil
	if e.hasData {
		c.metrics.ObserveServe(e.resource, e.stale)
	}
	c.mu.Unlock()

	if seed {
		go c.seed(e)
	}
	if needFetch {
		c.begin(e, false)
	}
	if enabled && opts.RefetchInterval > 0 {
		q.startPolling()
	}
	return q
}

// entryLocked returns the entry for key, creating it on first subscription.
func (c *Cache) entryLocked(key Key) *entry {
	canonical := key.String()
	if e, ok := c.entries[canonical]; ok {
		return e
	}
	e := &entry{
		key:         key,
		resource:    "unknown",
		subscribers: make(map[*Query]struct{}),
	}
	c.entries[canonical] = e
	return e
}

// begin starts a fetch for e or joins one already in flight. Unforced calls
// always join; a forced call joins only another forced fetch and otherwise
// supersedes the draining round trip with a new generation.
func (c *Cache) begin(e *entry, forced bool) *inflight {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return resolvedInflight(nil, ErrClosed)
	}
	if fl := e.inflight; fl != nil && (!forced || fl.forced) {
		c.metrics.ObserveDedup(e.resource)
		c.mu.Unlock()
		return fl
	}
	e.gen++
	fl := &inflight{gen: e.gen, forced: forced, done: make(chan struct{})}
	e.inflight = fl
	// A new fetch cycle clears the previous error; the last value stays
	// readable while the refresh runs.
	e.err = nil
	fetch := e.fetch
	c.mu.Unlock()

	go c.run(e, fl, fetch)
	return fl
}

// run executes one fetch round trip and lands the result. The fetch runs on a
// background context: waiters may abandon the wait individually, but the
// shared round trip completes and its result is still cached.
func (c *Cache) run(e *entry, fl *inflight, fetch FetchFunc) {
	start := time.Now()
	var (
		data any
		err  error
	)
	if fetch == nil {
		err = Validationf("query: no fetch function bound for key")
	} else {
		data, err = fetch(context.Background())
	}
	elapsed := time.Since(start)

	c.mu.Lock()
	superseded := fl.gen != e.gen
	var (
		res  Result
		subs []*Query
	)
	if !superseded {
		if e.inflight == fl {
			e.inflight = nil
		}
		if err != nil {
			e.err = err
			e.stale = e.hasData
		} else {
			e.data = data
			e.hasData = true
			e.err = nil
			e.stale = false
			e.fetchedAt = time.Now()
		}
		res = e.resultLocked()
		subs = make([]*Query, 0, len(e.subscribers))
		for q := range e.subscribers {
			subs = append(subs, q)
		}
	}
	fl.data, fl.err = data, err
	c.mu.Unlock()
	close(fl.done)

	if superseded {
		c.metrics.ObserveFetch(e.resource, metrics.FetchDiscarded, elapsed)
		c.logger.Debug("superseded fetch discarded", slog.String("key", e.key.String()))
		return
	}
	if err != nil {
		c.metrics.ObserveFetch(e.resource, metrics.FetchError, elapsed)
		c.logger.Warn("fetch failed",
			slog.String("key", e.key.String()),
			slog.String("resource", e.resource),
			slog.Any("error", err))
	} else {
		c.metrics.ObserveFetch(e.resource, metrics.FetchSuccess, elapsed)
		if c.store != nil {
			c.storeSnapshot(e.key, data)
		}
	}
	for _, q := range subs {
		q.push(res)
	}
}

// Invalidate marks every entry under the given prefixes stale, refetches the
// ones with active subscribers, and purges the matching snapshot range. This
// is deliberately broad: one created contact invalidates every cached contact
// list variant rather than risk serving stale post-mutation data. The refetch
// is forced so a round trip already draining from before the mutation is
// superseded instead of satisfying the invalidation with pre-mutation data.
func (c *Cache) Invalidate(ctx context.Context, prefixes ...Key) {
	if len(prefixes) == 0 {
		return
	}
	var refetch []*entry
	matched := 0
	c.mu.Lock()
	for _, e := range c.entries {
		for _, p := range prefixes {
			if !e.key.HasPrefix(p) {
				continue
			}
			e.stale = true
			matched++
			if len(e.subscribers) > 0 && e.fetch != nil {
				refetch = append(refetch, e)
			}
			break
		}
	}
	c.mu.Unlock()

	c.metrics.ObserveInvalidation(matched)
	c.logger.Debug("invalidation cascade", slog.Int("prefixes", len(prefixes)), slog.Int("entries", matched))
	for _, e := range refetch {
		c.begin(e, true)
	}
	if c.store != nil {
		for _, p := range prefixes {
			if err := c.store.DeletePrefix(ctx, p.String()); err != nil {
				c.logger.Warn("snapshot prefix purge failed", slog.String("prefix", p.String()), slog.Any("error", err))
			}
		}
	}
}

// Close tears the cache down. Outstanding fetches drain harmlessly; new
// fetch attempts resolve with ErrClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, e := range c.entries {
		if e.evict != nil {
			e.evict.Stop()
			e.evict = nil
		}
	}
	store := c.store
	c.mu.Unlock()

	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			c.logger.Error("snapshot store shutdown failed", slog.Any("error", err))
		}
	}
}

// Len reports the number of live entries, for health surfaces and tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) unsubscribe(q *Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := q.e
	delete(e.subscribers, q)
	if len(e.subscribers) > 0 || c.closed {
		return
	}
	canonical := e.key.String()
	e.evict = time.AfterFunc(c.grace, func() {
		c.evictExpired(canonical, e)
	})
}

// evictExpired removes e once the grace period lapses with no resubscription.
func (c *Cache) evictExpired(canonical string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.entries[canonical]
	if !ok || cur != e || len(e.subscribers) > 0 {
		return
	}
	delete(c.entries, canonical)
}

func (e *entry) resultLocked() Result {
	r := Result{Loading: e.inflight != nil, Err: e.err}
	if e.hasData {
		r.Data = e.data
	}
	return r
}

// seed hydrates an unseen key from the snapshot store. The value lands as
// stale data so subscribers see something immediately while the live fetch
// revalidates; a fetch that already resolved wins.
func (c *Cache) seed(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload, ok, err := c.store.Lookup(ctx, e.key.String())
	if err != nil {
		c.logger.Warn("snapshot lookup failed", slog.String("key", e.key.String()), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	c.mu.Lock()
	decode := e.decode
	c.mu.Unlock()

	var value any
	if decode != nil {
		value, err = decode(payload)
	} else {
		err = json.Unmarshal(payload, &value)
	}
	if err != nil {
		c.logger.Warn("snapshot decode failed", slog.String("key", e.key.String()), slog.Any("error", err))
		return
	}

	c.mu.Lock()
	if e.hasData {
		c.mu.Unlock()
		return
	}
	e.data = value
	e.hasData = true
	e.stale = true
	res := e.resultLocked()
	subs := make([]*Query, 0, len(e.subscribers))
	for q := range e.subscribers {
		subs = append(subs, q)
	}
	c.mu.Unlock()

	for _, q := range subs {
		q.push(res)
	}
}

func (c *Cache) storeSnapshot(key Key, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.Debug("snapshot marshal skipped", slog.String("key", key.String()), slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.Store(ctx, key.String(), payload, c.storeTTL); err != nil {
		c.logger.Warn("snapshot store failed", slog.String("key", key.String()), slog.Any("error", err))
	}
}

func resolvedInflight(data any, err error) *inflight {
	fl := &inflight{done: make(chan struct{}), data: data, err: err}
	close(fl.done)
	return fl
}
