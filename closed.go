package async

// Closeable is the abstract responsibility behind the graceful-shutdown
// mixin: a component with an async close implementation.
type Closeable interface {
	closeImpl(y *Yield) error
}

// Closed collapses concurrent Close() calls into a single underlying
// closeImpl() invocation; every caller -- the one that triggers
// closeImpl and every later one -- observes the same resolution via a
// shared IvarMulti.
type Closed struct {
	sched          *Scheduler
	impl           func(y *Yield) error
	onClose        *IvarMulti[error]
	closeRequested bool
}

// NewClosed builds a Closed mixin bound to sched, calling impl at most
// once across any number of Close invocations.
func NewClosed(sched *Scheduler, impl func(y *Yield) error) *Closed {
	return &Closed{sched: sched, impl: impl, onClose: NewIvarMulti[error](sched)}
}

// Close triggers impl on the first call; every call, including the
// first, suspends the calling task until impl has run and returns impl's
// error.
func (c *Closed) Close(y *Yield) error {
	if !c.closeRequested {
		c.closeRequested = true
		Go(c.sched, func(y *Yield) Unit {
			err := c.impl(y)
			c.onClose.Fill(err)
			return unit
		})
	}
	return Await(y, c.onClose.Deferred())
}

// WaitClosed awaits the same resolution as Close without triggering it,
// the Closed analogue of the original's closed() observer. If close was
// never requested, this suspends forever (there is nothing to observe).
func (c *Closed) WaitClosed(y *Yield) error {
	return Await(y, c.onClose.Deferred())
}
