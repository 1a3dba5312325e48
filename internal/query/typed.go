package query

import "context"

// Typed wraps a Query with a concrete value type so hook layers avoid
// repeating type assertions. A guard failure produces a handle with no
// underlying subscription that reports the validation error and never
// touches the platform.
type Typed[T any] struct {
	q     *Query
	guard error
}

// NewTyped wraps an active subscription.
func NewTyped[T any](q *Query) *Typed[T] {
	return &Typed[T]{q: q}
}

// TypedError builds a settled handle for a guard rejection.
func TypedError[T any](err error) *Typed[T] {
	return &Typed[T]{guard: err}
}

// Result projects the generic result into T. The value is the zero T when
// absent or of an unexpected type.
func (t *Typed[T]) Result() (T, Result) {
	var zero T
	if t.guard != nil {
		return zero, Result{Err: t.guard}
	}
	r := t.q.Result()
	v, ok := Data[T](r)
	if !ok {
		return zero, r
	}
	return v, r
}

// Wait blocks until the underlying entry settles, then projects into T.
func (t *Typed[T]) Wait(ctx context.Context) (T, Result) {
	var zero T
	if t.guard != nil {
		return zero, Result{Err: t.guard}
	}
	r := t.q.Wait(ctx)
	v, ok := Data[T](r)
	if !ok {
		return zero, r
	}
	return v, r
}

// Refetch forces a fetch and returns the typed outcome.
func (t *Typed[T]) Refetch(ctx context.Context) (T, error) {
	var zero T
	if t.guard != nil {
		return zero, t.guard
	}
	data, err := t.q.Refetch(ctx)
	if err != nil {
		return zero, err
	}
	v, ok := data.(T)
	if !ok {
		return zero, Transportf("query: unexpected result type %T", data)
	}
	return v, nil
}

// Updates exposes the underlying notification channel. Guard-failed handles
// return nil, which blocks forever in a select as intended.
func (t *Typed[T]) Updates() <-chan Result {
	if t.q == nil {
		return nil
	}
	return t.q.Updates()
}

// SetEnabled forwards to the underlying subscription.
func (t *Typed[T]) SetEnabled(v bool) {
	if t.q != nil {
		t.q.SetEnabled(v)
	}
}

// Close releases the underlying subscription.
func (t *Typed[T]) Close() {
	if t.q != nil {
		t.q.Close()
	}
}
