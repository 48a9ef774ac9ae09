package async

// Deferred is a thin read handle over an Ivar, or over an already-known
// value. It supplies Map/Bind combinators that schedule continuations
// rather than invoking them synchronously, which converts what would
// otherwise be unbounded recursion through a long chain into iteration:
// every hop re-enters the scheduler's ready queue.
type Deferred[T any] struct {
	// determined is set when this Deferred was built from a plain value
	// via Determined; in that case iter callbacks are scheduled directly
	// via sched rather than routed through an Ivar.
	determined bool
	value      T
	sched      *Scheduler
	iv         *Ivar[T]
	never      bool
}

// Determined constructs an already-resolved Deferred from a value.
func Determined[T any](sched *Scheduler, v T) Deferred[T] {
	return Deferred[T]{determined: true, value: v, sched: sched}
}

// Never returns a Deferred that is never resolved.
func Never[T any]() Deferred[T] {
	return Deferred[T]{never: true}
}

// deferredOverIvar builds a Deferred reading from an existing Ivar.
func deferredOverIvar[T any](iv *Ivar[T]) Deferred[T] {
	return Deferred[T]{sched: iv.sched, iv: iv}
}

// IsDetermined is a non-blocking probe.
func (d Deferred[T]) IsDetermined() bool {
	if d.never {
		return false
	}
	if d.determined {
		return true
	}
	return d.iv != nil && d.iv.IsDetermined() && d.iv.listener == nil && !d.iv.dead
}

// Iter registers f as the single listener, invoked when the value
// arrives. Scheduled, never invoked synchronously, even if the Deferred
// is already determined.
func (d Deferred[T]) Iter(f func(T)) {
	switch {
	case d.never:
		return
	case d.determined:
		sched := d.sched
		v := d.value
		if sched == nil {
			panic("async: Determined Deferred has no bound scheduler, cannot schedule Iter")
		}
		sched.Schedule(func() { f(v) })
	default:
		d.iv.OnDetermined(f)
	}
}

func (d Deferred[T]) scheduler() *Scheduler {
	if d.sched != nil {
		return d.sched
	}
	if d.iv != nil {
		return d.iv.sched
	}
	return nil
}

// Map returns a fresh Deferred[U] fulfilled by applying f to the inner
// value when it arrives.
func Map[T, U any](d Deferred[T], f func(T) U) Deferred[U] {
	if d.never {
		return Never[U]()
	}
	out := NewIvar[U](d.scheduler())
	d.Iter(func(v T) { out.Fill(f(v)) })
	return deferredOverIvar(out)
}

// Bind returns a fresh Deferred[U] that resolves when the Deferred
// returned by f resolves.
func Bind[T, U any](d Deferred[T], f func(T) Deferred[U]) Deferred[U] {
	if d.never {
		return Never[U]()
	}
	out := NewIvar[U](d.scheduler())
	d.Iter(func(v T) {
		f(v).Iter(func(u U) { out.Fill(u) })
	})
	return deferredOverIvar(out)
}
