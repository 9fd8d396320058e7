package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Outcomes reported through QueryOptions.Observe.
const (
	OutcomeFresh  = "fresh"
	OutcomeStale  = "stale"
	OutcomeRemote = "remote"
	OutcomeMiss   = "miss"
)

// RemoteStore is a cache tier shared between processes.
type RemoteStore interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}

type QueryOptions struct {
	// Freshness is how long a value is served without revalidation.
	Freshness time.Duration
	// MaxAge bounds how long a stale value may still be served.
	MaxAge time.Duration
	// Size is the number of keys kept locally.
	Size int
	// RevalidateTimeout bounds shared and background fetches, which run
	// detached from the caller that started them.
	RevalidateTimeout time.Duration

	Remote  RemoteStore
	Logger  *slog.Logger
	Observe func(outcome string)
}

// Query caches fetch results per key with stale-while-revalidate semantics.
// Concurrent misses for one key share a single fetch.
type Query[T any] struct {
	opts  QueryOptions
	local *LRUCache[T]
	group singleflight.Group
	now   func() time.Time

	// mu guards epoch and orders stores against invalidations. epoch changes
	// on every invalidation; fetches that started before it changed are not
	// stored.
	mu    sync.Mutex
	epoch uint64
	bg    sync.WaitGroup
}

type remoteEntry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

func NewQuery[T any](opts QueryOptions) *Query[T] {
	if opts.Freshness <= 0 {
		opts.Freshness = time.Minute
	}
	if opts.MaxAge < opts.Freshness {
		opts.MaxAge = opts.Freshness
	}
	if opts.Size <= 0 {
		opts.Size = 128
	}
	if opts.RevalidateTimeout <= 0 {
		opts.RevalidateTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Query[T]{
		opts:  opts,
		local: NewLRUCache[T](opts.Size, opts.MaxAge),
		now:   time.Now,
	}
}

// Get returns the cached value for key, calling fetch on a miss. A stale
// value is returned immediately while a background fetch refreshes it.
func (q *Query[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	now := q.now()
	if v, storedAt, ok := q.local.GetWithTime(key); ok {
		if now.Sub(storedAt) < q.opts.Freshness {
			q.observe(OutcomeFresh)
			return v, nil
		}
		q.observe(OutcomeStale)
		q.revalidate(ctx, key, fetch)
		return v, nil
	}

	if q.opts.Remote != nil {
		var e remoteEntry[T]
		found, err := q.opts.Remote.Get(ctx, key, &e)
		switch {
		case err != nil:
			q.opts.Logger.WarnContext(ctx, "Remote cache read failed", "key", key, "error", err)
		case found && now.Sub(e.StoredAt) < q.opts.MaxAge:
			q.local.SetAt(key, e.Value, e.StoredAt)
			q.observe(OutcomeRemote)
			if now.Sub(e.StoredAt) >= q.opts.Freshness {
				q.revalidate(ctx, key, fetch)
			}
			return e.Value, nil
		}
	}

	q.observe(OutcomeMiss)
	return q.load(ctx, key, fetch)
}

// Refresh fetches key unconditionally and stores the result.
func (q *Query[T]) Refresh(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	q.group.Forget(key)
	return q.load(ctx, key, fetch)
}

// load shares one fetch per key between concurrent callers. The fetch runs
// detached from any single caller; each caller stops waiting when its own
// ctx is done.
func (q *Query[T]) load(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	epoch := q.currentEpoch()
	shared := context.WithoutCancel(ctx)
	ch := q.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(shared, q.opts.RevalidateTimeout)
		defer cancel()
		val, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		q.store(fctx, key, val, epoch)
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		val, _ := res.Val.(T)
		return val, nil
	}
}

func (q *Query[T]) currentEpoch() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.epoch
}

// store saves val unless an invalidation happened since epoch was read. The
// remote write happens under mu so that a concurrent Invalidate either sees
// the stored key or makes this store a no-op.
func (q *Query[T]) store(ctx context.Context, key string, val T, epoch uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.epoch != epoch {
		return
	}
	storedAt := q.now()
	q.local.SetAt(key, val, storedAt)
	if q.opts.Remote == nil {
		return
	}
	entry := remoteEntry[T]{Value: val, StoredAt: storedAt}
	if err := q.opts.Remote.Set(ctx, key, entry, q.opts.MaxAge); err != nil {
		q.opts.Logger.WarnContext(ctx, "Remote cache write failed", "key", key, "error", err)
	}
}

func (q *Query[T]) revalidate(ctx context.Context, key string, fetch func(context.Context) (T, error)) {
	parent := context.WithoutCancel(ctx)
	q.bg.Add(1)
	go func() {
		defer q.bg.Done()
		ctx, cancel := context.WithTimeout(parent, q.opts.RevalidateTimeout)
		defer cancel()
		if _, err := q.load(ctx, key, fetch); err != nil {
			q.opts.Logger.WarnContext(ctx, "Background revalidation failed", "key", key, "error", err)
		}
	}()
}

// Invalidate drops every key for which match returns true, locally and in
// the remote tier, and returns the dropped keys.
func (q *Query[T]) Invalidate(ctx context.Context, match func(key string) bool) []string {
	q.mu.Lock()
	q.epoch++
	removed := q.local.DeleteFunc(match)
	q.mu.Unlock()
	seen := make(map[string]bool, len(removed))
	for _, k := range removed {
		seen[k] = true
		q.group.Forget(k)
	}

	if q.opts.Remote != nil {
		keys, err := q.opts.Remote.Keys(ctx)
		if err != nil {
			q.opts.Logger.WarnContext(ctx, "Remote cache key scan failed", "error", err)
			return removed
		}
		var remote []string
		for _, k := range keys {
			if match(k) {
				remote = append(remote, k)
				if !seen[k] {
					seen[k] = true
					removed = append(removed, k)
				}
			}
		}
		if len(remote) > 0 {
			if err := q.opts.Remote.Delete(ctx, remote...); err != nil {
				q.opts.Logger.WarnContext(ctx, "Remote cache delete failed", "keys", len(remote), "error", err)
			}
		}
	}
	return removed
}

// Keys lists locally cached keys.
func (q *Query[T]) Keys() []string { return q.local.Keys() }

// Cleaner exposes the local tier for a Manager.
func (q *Query[T]) Cleaner() Cleaner { return q.local }

// Wait blocks until background revalidations have finished.
func (q *Query[T]) Wait() { q.bg.Wait() }

func (q *Query[T]) observe(outcome string) {
	if q.opts.Observe != nil {
		q.opts.Observe(outcome)
	}
}
