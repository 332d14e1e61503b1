package query

import "context"

// MutationFunc performs the network write backing a mutation.
type MutationFunc[I, O any] func(ctx context.Context, in I) (O, error)

// Mutation wraps one write operation and the cache keys it invalidates on
// success. A failed write leaves every cached entry untouched; the cache is
// never updated with the mutation's own response (no optimistic merge).
type Mutation[I, O any] struct {
	store       *Store
	run         MutationFunc[I, O]
	invalidates []Key
	onSuccess   func(context.Context, O)
}

// NewMutation creates a mutation that invalidates the given key prefixes
// after a successful write.
func NewMutation[I, O any](store *Store, run MutationFunc[I, O], invalidates ...Key) *Mutation[I, O] {
	return &Mutation[I, O]{store: store, run: run, invalidates: invalidates}
}

// OnSuccess registers a handler that runs strictly after the network response
// and strictly before the invalidation refetches.
func (m *Mutation[I, O]) OnSuccess(fn func(context.Context, O)) *Mutation[I, O] {
	m.onSuccess = fn
	return m
}

// Do executes the write. Mutations never retry automatically.
func (m *Mutation[I, O]) Do(ctx context.Context, in I) (O, error) {
	out, err := m.run(ctx, in)
	if err != nil {
		var zero O
		return zero, err
	}
	if m.onSuccess != nil {
		m.onSuccess(ctx, out)
	}
	m.store.Invalidate(m.invalidates...)
	return out, nil
}
