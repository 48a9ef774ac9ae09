package async

import "time"

// After returns a Deferred[Unit] that resolves once span has elapsed on
// sched's clock. Even After(sched, 0) resolves on a later turn, never
// synchronously.
func After(sched *Scheduler, span time.Duration) Deferred[Unit] {
	iv := NewIvar[Unit](sched)
	sched.After(span, func() { iv.Fill(unit) })
	return deferredOverIvar(iv)
}

// EveryHandle is the cooperative handle returned by Every.
type EveryHandle struct {
	sched      *Scheduler
	span       time.Duration
	f          func(y *Yield)
	running    bool
	cancelIvar *Ivar[Unit]
	timerID    TimerID
	haveTimer  bool
	done       *IvarMulti[Unit]
}

// Every schedules f repeatedly with span gaps between completions.
// handle.Close() cooperatively cancels by resolving a sentinel ivar that
// also serves as the timer's early-wakeup; the in-flight timer is
// canceled only if it has not yet fired.
func Every(sched *Scheduler, span time.Duration, f func(y *Yield)) *EveryHandle {
	h := &EveryHandle{sched: sched, span: span, f: f, running: true, done: NewIvarMulti[Unit](sched)}
	Go(sched, func(y *Yield) Unit {
		h.loop(y)
		h.done.Fill(unit)
		return unit
	})
	return h
}

func (h *EveryHandle) loop(y *Yield) {
	for h.running {
		h.f(y)
		if !h.running {
			return
		}
		continueIvar := NewIvar[Unit](h.sched)
		h.cancelIvar = NewIvar[Unit](h.sched)
		cancelIvar := h.cancelIvar
		resolved := false
		cancelIvar.OnDetermined(func(Unit) {
			if !resolved {
				resolved = true
				continueIvar.Fill(unit)
			}
		})
		h.timerID = h.sched.After(h.span, func() {
			if !resolved {
				resolved = true
				continueIvar.Fill(unit)
			}
		})
		h.haveTimer = true
		Await(y, deferredOverIvar(continueIvar))
		if !h.running {
			h.sched.Cancel(h.timerID)
			h.haveTimer = false
			return
		}
	}
}

// Close stops the repetition: sets running false, resolves the
// cancellation ivar (cancelling the in-flight timer if it has not yet
// fired), and awaits the loop task's final exit.
func (h *EveryHandle) Close(y *Yield) {
	h.running = false
	if h.cancelIvar != nil && !h.cancelIvar.IsDetermined() {
		h.cancelIvar.Fill(unit)
	}
	Await(y, h.done.Deferred())
}

// Repeat runs f sequentially n times, short-circuiting on the first
// error. Repeat(y, 0, f) returns success without invoking f.
func Repeat(y *Yield, n int, f func(y *Yield) error) error {
	for i := 0; i < n; i++ {
		if err := f(y); err != nil {
			return err
		}
	}
	return nil
}

// RepeatParallel spawns concurrency workers, each popping from a shared
// counter and running f() until the counter is exhausted, and suspends
// the calling task until every worker has finished. Results are appended
// in completion order; there is no stable ordering guarantee across
// workers.
func RepeatParallel[R any](y *Yield, sched *Scheduler, n, concurrency int, f func(y *Yield) R) []R {
	if concurrency < 1 {
		concurrency = 1
	}
	remaining := n
	var results []R
	workers := make([]*Task[Unit], 0, concurrency)
	for i := 0; i < concurrency; i++ {
		workers = append(workers, Go(sched, func(y *Yield) Unit {
			for remaining > 0 {
				remaining--
				results = append(results, f(y))
			}
			return unit
		}))
	}
	for _, w := range workers {
		AwaitTask(y, w)
	}
	return results
}

// WaitAll awaits every Deferred in ds sequentially, returning their
// values in input order.
func WaitAll[T any](y *Yield, ds []Deferred[T]) []T {
	out := make([]T, len(ds))
	for i, d := range ds {
		out[i] = Await(y, d)
	}
	return out
}

// IterParallel runs f over every item in items using concurrency workers
// sharing an index cursor, and suspends the calling task until every
// worker has finished.
func IterParallel[T any](y *Yield, sched *Scheduler, items []T, concurrency int, f func(y *Yield, item T)) {
	if concurrency < 1 {
		concurrency = 1
	}
	idx := 0
	workers := make([]*Task[Unit], 0, concurrency)
	for i := 0; i < concurrency; i++ {
		workers = append(workers, Go(sched, func(y *Yield) Unit {
			for idx < len(items) {
				item := items[idx]
				idx++
				f(y, item)
			}
			return unit
		}))
	}
	for _, w := range workers {
		AwaitTask(y, w)
	}
}
