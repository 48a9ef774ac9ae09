package async

// Go has no native coroutines, so Task emulates one with a goroutine and
// a resume/yield-back channel handshake: at any instant exactly one of
// {the scheduler goroutine, the task goroutine} is "active" with respect
// to scheduler state, reproducing the invariant a real coroutine gets
// for free from its suspend/resume points. This generalizes the
// teacher's Promisify goroutine-to-loop handoff into a full two-way
// bridge.

// Yield is the handle a running Task body uses to suspend itself,
// awaiting a Deferred or another Task. It is the moral equivalent of
// co_await.
type Yield struct {
	resume  chan any
	yielded chan struct{}
}

// Await suspends the task body until d resolves, returning its value. If
// d is already determined, Await returns immediately without crossing
// the channel handshake -- no turn is consumed, mirroring
// await_ready() == true.
func Await[T any](y *Yield, d Deferred[T]) T {
	if d.determined {
		return d.value
	}
	if d.never {
		// the never sentinel: hand control back to the scheduler, then
		// this goroutine suspends forever
		y.yielded <- struct{}{}
		select {}
	}
	if d.iv.IsDetermined() && d.iv.listener == nil && !d.iv.dead {
		// Determined with no listener yet: the value is sitting in the
		// Ivar. Reading it here, synchronously, honours "ready values do
		// not suspend" -- going through Iter would force a needless
		// scheduling hop.
		return d.iv.value
	}
	d.iv.OnDetermined(func(v T) {
		y.resume <- v
		<-y.yielded
	})
	y.yielded <- struct{}{}
	v := <-y.resume
	return v.(T)
}

// taskState is the shared, GC-managed node a Task and its awaiter
// reference -- the Go analogue of the original's shared_ptr<TaskState>,
// with the garbage collector breaking what would otherwise be a
// reference cycle.
type taskState struct {
	done        bool
	awaitResume func() // schedules the awaiting task's resume
}

// Task wraps a goroutine-backed body and its taskState. value is set
// exactly once, at the body's return.
type Task[T any] struct {
	sched *Scheduler
	state *taskState
	value T
	ivar  *Ivar[T]

	resume  chan any
	yielded chan struct{}
}

// Go launches body on a new goroutine, bound to sched's ready queue for
// every suspension/resume. The body begins executing immediately (no
// initial suspend), matching this system's "runs through to the first
// awaited non-ready value" contract.
func Go[T any](sched *Scheduler, body func(y *Yield) T) *Task[T] {
	sched.assertOwnerGoroutine()
	t := &Task[T]{
		sched:   sched,
		state:   &taskState{},
		resume:  make(chan any),
		yielded: make(chan struct{}),
	}
	y := &Yield{resume: t.resume, yielded: t.yielded}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				// Appended directly rather than via Schedule, whose
				// goroutine check would reject this task goroutine; the
				// scheduler goroutine is blocked in the handshake here.
				sched.primary = append(sched.primary, func() {
					panic(&PanicError{Value: r})
				})
				t.yielded <- struct{}{}
				return
			}
		}()
		v := body(y)
		t.finish(v)
	}()

	// Run the body until its first suspension or return: the launching
	// call blocks on yielded exactly once here, handing control back to
	// the scheduler goroutine the instant the body relinquishes it.
	<-t.yielded
	return t
}

func (t *Task[T]) finish(v T) {
	t.value = v
	t.state.done = true
	if t.state.awaitResume != nil {
		resume := t.state.awaitResume
		t.state.awaitResume = nil
		t.sched.Schedule(resume)
	} else if t.ivar != nil {
		t.ivar.Fill(v)
	}
	t.yielded <- struct{}{}
}

// Done reports whether the task body has returned.
func (t *Task[T]) Done() bool { return t.state.done }

// Value returns the task's result. Valid only once Done() is true.
func (t *Task[T]) Value() T { return t.value }

// AwaitTask suspends the calling task body until t completes, returning
// its value. If t is already done, returns synchronously.
func AwaitTask[T any](y *Yield, t *Task[T]) T {
	if t.state.done {
		return t.value
	}
	t.state.awaitResume = func() {
		y.resume <- t.value
		<-y.yielded
	}
	y.yielded <- struct{}{}
	v := <-y.resume
	return v.(T)
}

// ToDeferred returns an already-determined Deferred[T] if t is done,
// else attaches a fresh Ivar to the task state and returns a Deferred
// over it, filled when the task completes.
func (t *Task[T]) ToDeferred() Deferred[T] {
	if t.state.done {
		return Determined(t.sched, t.value)
	}
	t.ivar = NewIvar[T](t.sched)
	return deferredOverIvar(t.ivar)
}
