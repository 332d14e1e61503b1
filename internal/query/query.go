package query

import (
	"context"
	"sync"
	"time"
)

// FetchFunc performs the network read backing a query.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Result is a snapshot of a watched query's state. Failures surface only
// through Err; a watcher callback is never invoked after its stop function
// returns.
type Result[T any] struct {
	// Data is the last resolved value. Valid only when Ready is true; during
	// a refetch it still holds the previous (stale) value.
	Data  T
	Ready bool

	// Loading is true while a fetch for this consumer is in flight.
	Loading bool

	// Err is the last fetch error, nil after a success.
	Err error
}

// Query binds one cache key to one read, with a staleness window and a retry
// policy.
type Query[T any] struct {
	store *Store
	key   Key
	ttl   time.Duration
	retry RetryPolicy
	fetch FetchFunc[T]
}

// New creates a query binding. The store is shared; the binding itself is
// cheap and may be rebuilt per use.
func New[T any](store *Store, key Key, ttl time.Duration, retry RetryPolicy, fetch FetchFunc[T]) *Query[T] {
	return &Query[T]{store: store, key: key, ttl: ttl, retry: retry, fetch: fetch}
}

// Key returns the cache key this query is bound to.
func (q *Query[T]) Key() Key {
	return q.key
}

// Get returns the cached value when fresh, otherwise fetches, stores, and
// returns it. Concurrent calls for the same key collapse to a single fetch.
// Errors are not cached; a stale value stays in place for peeking.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	if v, ok := q.store.lookup(q.key); ok {
		return v.(T), nil
	}

	v, err, _ := q.store.group.Do(q.key.String(), func() (any, error) {
		// A concurrent flight may have filled the cache already.
		if v, ok := q.store.lookup(q.key); ok {
			return v, nil
		}
		data, err := q.fetchWithRetry(ctx)
		if err != nil {
			return nil, err
		}
		q.store.set(q.key, data, q.ttl)
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Peek returns the cached value even when stale, without fetching.
func (q *Query[T]) Peek() (T, bool) {
	if v, ok := q.store.peek(q.key); ok {
		return v.(T), true
	}
	var zero T
	return zero, false
}

func (q *Query[T]) fetchWithRetry(ctx context.Context) (T, error) {
	attempts := q.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var (
		data T
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if waitErr := sleepCtx(ctx, q.retry.Backoff(attempt-1)); waitErr != nil {
				return data, waitErr
			}
		}
		data, err = q.fetch(ctx)
		if err == nil {
			return data, nil
		}
	}
	var zero T
	return zero, err
}

// Watch subscribes a consumer to this query. The callback immediately
// receives a loading snapshot, then the resolved one; it runs again whenever
// the key is invalidated. Calls for one watcher are serialized. The returned
// stop function unsubscribes and discards any in-flight result.
func (q *Query[T]) Watch(ctx context.Context, fn func(Result[T])) (stop func()) {
	var (
		mu      sync.Mutex
		stopped bool
		last    Result[T]
	)
	emit := func(r Result[T]) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		last = r
		fn(r)
	}
	run := func() {
		mu.Lock()
		loading := Result[T]{Data: last.Data, Ready: last.Ready, Loading: true}
		mu.Unlock()
		emit(loading)

		data, err := q.Get(ctx)
		if err != nil {
			emit(Result[T]{Data: loading.Data, Ready: loading.Ready, Err: err})
			return
		}
		emit(Result[T]{Data: data, Ready: true})
	}

	id := q.store.register(q.key, func() { run() })
	go run()

	return func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
		q.store.unregister(q.key, id)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
