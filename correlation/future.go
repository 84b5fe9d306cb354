package correlation

import "context"

// Future is a single-assignment result shared by every waiter of one key.
//
// Contract:
// - Concurrency: safe for concurrent use; any number of goroutines may Await.
// - Completion: happens exactly once, by the owning Registry.
type Future[V any] struct {
	done chan struct{}
	val  V
	err  error
}

func newFuture[V any]() *Future[V] {
	return &Future[V]{done: make(chan struct{})}
}

// complete must be called at most once, with the registry lock held.
func (f *Future[V]) complete(v V, err error) {
	f.val = v
	f.err = err
	close(f.done)
}

// Done returns a channel closed once the future completes.
func (f *Future[V]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx ends. Cancelling ctx
// detaches only this caller; the entry and its other waiters are unaffected.
func (f *Future[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
