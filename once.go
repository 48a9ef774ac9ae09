package async

// Once wraps a producer function and guarantees it is started at most
// once regardless of how many times the Once value is invoked. The first
// call schedules the producer as a task whose result fills a shared
// IvarMulti; every call -- including the first -- suspends the calling
// task on that IvarMulti and returns its value.
type Once[T any] struct {
	sched   *Scheduler
	fn      func(y *Yield) T
	ivar    *IvarMulti[T]
	started bool
}

// NewOnce wraps fn for at-most-once invocation.
func NewOnce[T any](sched *Scheduler, fn func(y *Yield) T) *Once[T] {
	return &Once[T]{sched: sched, fn: fn, ivar: NewIvarMulti[T](sched)}
}

// Call starts fn on first invocation only, and always suspends the
// calling task until fn's result is available, then returns it.
func (o *Once[T]) Call(y *Yield) T {
	if !o.started {
		o.started = true
		Go(o.sched, func(y *Yield) Unit {
			v := o.fn(y)
			o.ivar.Fill(v)
			return unit
		})
	}
	return Await(y, o.ivar.Deferred())
}
