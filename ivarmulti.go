package async

// IvarMulti is an Ivar-like write-once cell that fans a copy of its value
// out to N listeners instead of one. Listeners registered after Fill
// still receive the value, scheduled rather than invoked synchronously.
// Used for "closed"/"flushed" notifications where multiple observers
// must see the same event.
type IvarMulti[T any] struct {
	sched     *Scheduler
	value     T
	hasValue  bool
	listeners []func(T)
}

// NewIvarMulti creates an empty IvarMulti bound to sched.
func NewIvarMulti[T any](sched *Scheduler) *IvarMulti[T] {
	return &IvarMulti[T]{sched: sched}
}

// IsDetermined reports whether Fill has been called.
func (m *IvarMulti[T]) IsDetermined() bool {
	return m.hasValue
}

// Fill delivers v to every registered listener, and to every listener
// registered hereafter. Like Ivar, IvarMulti is write-once: a second
// Fill panics with *AlreadyFilledError.
func (m *IvarMulti[T]) Fill(v T) {
	if m.hasValue {
		panic(&AlreadyFilledError{What: "IvarMulti"})
	}
	m.value = v
	m.hasValue = true
	for _, l := range m.listeners {
		m.scheduleOne(l, v)
	}
	m.listeners = nil
}

// OnDetermined registers another fan-out listener.
func (m *IvarMulti[T]) OnDetermined(listener func(T)) {
	if m.hasValue {
		m.scheduleOne(listener, m.value)
		return
	}
	m.listeners = append(m.listeners, listener)
}

func (m *IvarMulti[T]) scheduleOne(listener func(T), v T) {
	if m.sched == nil {
		panic("async: IvarMulti has no bound scheduler, cannot schedule delivery")
	}
	m.sched.Schedule(func() { listener(v) })
}

// Deferred over an IvarMulti: every call produces a fresh single-shot
// Ivar subscribed to the multi, so the same IvarMulti can back any
// number of independent Deferred handles.
func (m *IvarMulti[T]) Deferred() Deferred[T] {
	out := NewIvar[T](m.sched)
	m.OnDetermined(func(v T) { out.Fill(v) })
	return deferredOverIvar(out)
}
