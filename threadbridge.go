package async

import "sync"

// ThreadBridge is the sole concurrent data structure in this package. It
// lets off-scheduler-goroutine producers (subprocess waiter goroutines,
// user goroutines performing blocking work) hand closures back to the
// scheduler goroutine: Submit appends under a mutex and signals a wake
// fd registered with the Scheduler's poller; the Scheduler drains the
// queue on that fd's readiness, on the scheduler goroutine, in FIFO
// order.
type ThreadBridge struct {
	sched       *Scheduler
	mu          sync.Mutex
	queue       []func()
	readFD      int
	writeFD     int
	initialized bool
}

func newThreadBridge(sched *Scheduler) (*ThreadBridge, error) {
	r, w, err := newWakeFD()
	if err != nil {
		return nil, err
	}
	return &ThreadBridge{sched: sched, readFD: r, writeFD: w}, nil
}

// register hooks the bridge's wake fd into the scheduler's poller. Called
// once during Scheduler construction.
func (b *ThreadBridge) register() error {
	if err := b.sched.AddFD(b.readFD, EventRead, func(IOEvents) {
		b.drain()
	}); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

// Submit appends fn to the bridge queue and wakes the scheduler goroutine.
// Safe to call from any goroutine.
func (b *ThreadBridge) Submit(fn func()) {
	b.mu.Lock()
	b.queue = append(b.queue, fn)
	b.mu.Unlock()
	_ = signalWakeFD(b.writeFD)
}

// drain runs on the scheduler goroutine in response to wake-fd readiness:
// it drains the thread-safe queue and schedules each closure onto the
// ready queue, preserving FIFO order and the single-goroutine-mutation
// invariant for everything downstream of this point.
func (b *ThreadBridge) drain() {
	drainWakeFD(b.readFD)
	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	b.mu.Unlock()
	for _, fn := range pending {
		b.sched.Schedule(fn)
	}
}

func (b *ThreadBridge) close() {
	if b.initialized {
		_ = b.sched.RemoveFD(b.readFD)
	}
	closeWakeFD(b.readFD, b.writeFD)
}
