package hostval

import "sync"

// DeferredState is the settlement state of a Deferred.
type DeferredState int

const (
	Pending DeferredState = iota
	Resolved
	Rejected
)

func (s DeferredState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Deferred is a promise-like result carrier. The producer settles it
// exactly once with Resolve or Reject; later settlement attempts are
// ignored. Consumers either Await the settlement or register callbacks
// with Then.
//
// The runtime settles every Deferred it hands out before returning it:
// compilation and instantiation run synchronously on the calling
// goroutine, so Await never blocks on runtime-produced deferreds. The
// blocking form exists for host schedulers that settle from another
// goroutine.
type Deferred[T any] struct {
	mu    sync.Mutex
	done  chan struct{}
	state DeferredState
	value T
	err   error
	subs  []func(T, error)
}

// NewDeferred builds a pending Deferred.
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolve settles the Deferred with a value. No-op if already settled.
func (d *Deferred[T]) Resolve(v T) {
	d.settle(Resolved, v, nil)
}

// Reject settles the Deferred with an error. No-op if already settled.
func (d *Deferred[T]) Reject(err error) {
	var zero T
	d.settle(Rejected, zero, err)
}

func (d *Deferred[T]) settle(state DeferredState, v T, err error) {
	d.mu.Lock()
	if d.state != Pending {
		d.mu.Unlock()
		return
	}
	d.state = state
	d.value = v
	d.err = err
	subs := d.subs
	d.subs = nil
	close(d.done)
	d.mu.Unlock()

	for _, fn := range subs {
		fn(v, err)
	}
}

// State reports the current settlement state.
func (d *Deferred[T]) State() DeferredState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Await blocks until the Deferred settles and returns its outcome.
func (d *Deferred[T]) Await() (T, error) {
	<-d.done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.err
}

// Then registers settlement callbacks. If the Deferred already settled,
// the matching callback runs synchronously before Then returns. Either
// callback may be nil.
func (d *Deferred[T]) Then(onResolve func(T), onReject func(error)) {
	fn := func(v T, err error) {
		if err != nil {
			if onReject != nil {
				onReject(err)
			}
			return
		}
		if onResolve != nil {
			onResolve(v)
		}
	}

	d.mu.Lock()
	if d.state == Pending {
		d.subs = append(d.subs, fn)
		d.mu.Unlock()
		return
	}
	v, err := d.value, d.err
	d.mu.Unlock()
	fn(v, err)
}
