package async

// pipeOption is the Go stand-in for the original's std::optional<T>
// result of Pipe.NextValue: a value, or none (the pipe closed with
// nothing queued). Named to avoid colliding with the functional-option
// type used by Scheduler configuration.
type pipeOption[T any] struct {
	Value T
	Some  bool
}

func some[T any](v T) pipeOption[T] { return pipeOption[T]{Value: v, Some: true} }
func none[T any]() pipeOption[T]    { var z T; return pipeOption[T]{Value: z} }

// Pipe is a single-producer/single-consumer async queue: a value queue,
// a queue of waiting-pop Ivars, a queue of waiting-push Ivars, and a
// closed flag. At most one of (queued values, pop-waiters, push-waiters)
// is the "active" side at a given instant -- Push always matches
// immediately against a pop-waiter when one exists.
type Pipe[T any] struct {
	sched      *Scheduler
	queue      []T
	popWaiters []*Ivar[pipeOption[T]]
	pushWaiters []*Ivar[Unit]
	closed     bool
}

// NewPipe creates an empty, open Pipe bound to sched.
func NewPipe[T any](sched *Scheduler) *Pipe[T] {
	return &Pipe[T]{sched: sched}
}

// Push hands v directly to a waiting reader's Ivar if one exists;
// otherwise enqueues it.
func (p *Pipe[T]) Push(v T) {
	if len(p.popWaiters) > 0 {
		w := p.popWaiters[0]
		p.popWaiters = p.popWaiters[1:]
		w.Fill(some(v))
		return
	}
	p.queue = append(p.queue, v)
}

// BlockingPush waits until a pop-waiter exists, then hands v off
// directly, never landing in the backing queue.
func BlockingPush[T any](y *Yield, p *Pipe[T], v T) {
	for {
		if len(p.popWaiters) > 0 {
			p.Push(v)
			return
		}
		ready := NewIvar[Unit](p.sched)
		p.pushWaiters = append(p.pushWaiters, ready)
		Await(y, deferredOverIvar(ready))
	}
}

// NextValue returns the next queued value, or none if the pipe is closed
// with nothing queued, or suspends until a value arrives or the pipe
// closes.
func NextValue[T any](y *Yield, p *Pipe[T]) pipeOption[T] {
	if len(p.queue) > 0 {
		v := p.queue[0]
		p.queue = p.queue[1:]
		return some(v)
	}
	if p.closed {
		return none[T]()
	}
	waiter := NewIvar[pipeOption[T]](p.sched)
	p.popWaiters = append(p.popWaiters, waiter)
	if len(p.pushWaiters) > 0 {
		w := p.pushWaiters[0]
		p.pushWaiters = p.pushWaiters[1:]
		w.Fill(unit)
	}
	return Await(y, deferredOverIvar(waiter))
}

// Close marks the pipe closed, resolves every waiting reader with none,
// and resolves every waiting writer so it observes closure on its next
// attempt.
func (p *Pipe[T]) Close() {
	p.closed = true
	waiters := p.popWaiters
	p.popWaiters = nil
	for _, w := range waiters {
		w.Fill(none[T]())
	}
	pushers := p.pushWaiters
	p.pushWaiters = nil
	for _, w := range pushers {
		w.Fill(unit)
	}
}

// IsClosed reports whether Close has been called.
func (p *Pipe[T]) IsClosed() bool { return p.closed }

// MapPipe spawns a scheduled task pumping values from p through f into a
// fresh output Pipe, closing the output when p closes or the output is
// closed externally.
func MapPipe[T, R any](sched *Scheduler, p *Pipe[T], f func(T) R) *Pipe[R] {
	out := NewPipe[R](sched)
	Go(sched, func(y *Yield) Unit {
		for {
			v := NextValue(y, p)
			if !v.Some || out.IsClosed() {
				break
			}
			out.Push(f(v.Value))
		}
		out.Close()
		return unit
	})
	return out
}

// IterPipe drains p synchronously, calling f for every value until
// closure. It does not suspend between values beyond what NextValue
// itself requires.
func IterPipe[T any](y *Yield, p *Pipe[T], f func(T)) {
	for {
		v := NextValue(y, p)
		if !v.Some {
			return
		}
		f(v.Value)
	}
}

// IterPipe2 is IterPipe's async-callback variant: f itself may suspend
// via y.
func IterPipe2[T any](y *Yield, p *Pipe[T], f func(*Yield, T)) {
	for {
		v := NextValue(y, p)
		if !v.Some {
			return
		}
		f(y, v.Value)
	}
}
