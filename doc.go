// Package async provides a single-threaded cooperative scheduler, a
// write-once future algebra (Ivar, Deferred), and a goroutine-backed
// coroutine bridge (Task) for building user-space asynchronous runtimes.
//
// # Architecture
//
// A [Scheduler] drives all forward progress: a FIFO ready queue, a
// monotonic timer heap, and an OS readiness primitive (epoll on Linux,
// poll on macOS). [Ivar] is the write-once synchronization primitive
// underlying every deferred value; [Deferred] is its read side, offering
// Map/Bind combinators that schedule continuations instead of invoking
// them synchronously. [Task] emulates a coroutine frame with a goroutine
// and a resume/yield-back channel handshake, so that exactly one logical
// thread of execution ever touches scheduler state.
//
// # Platform support
//
// I/O readiness is implemented with platform-native primitives:
//   - Linux: epoll, edge-triggered (EPOLLET)
//   - macOS: poll(2), level-triggered
//
// # Concurrency
//
// Every Scheduler method, every Ivar fill, every combinator must be
// called from the goroutine that created the Scheduler. Calling from any
// other goroutine is a programmer error and panics. The only concurrent
// data structure in the system is the thread bridge used to hand work
// from off-goroutine producers (subprocess waiters, user goroutines)
// back onto the scheduler goroutine.
//
// # Usage
//
//	sched, err := async.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sched.Close()
//
//	iv := async.NewIvar[string](sched)
//	iv.OnDetermined(func(v string) { fmt.Println(v) })
//	sched.Schedule(func() { iv.Fill("hello") })
//
//	_ = sched.Run(func() bool { return iv.IsDetermined() })
package async
