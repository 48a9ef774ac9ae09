package async

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// processHasScheduler guards the "exactly one scheduler per process"
// invariant. It is the one place outside ThreadBridge where a genuine
// race is possible (construction racing construction), so it uses an
// atomic.
var processHasScheduler atomic.Bool

// Scheduler is the single-threaded cooperative event loop: a FIFO ready
// queue, a monotonic timer heap, and an fd-readiness demultiplexer. Every
// method below except Metrics and Bridge must be called from the
// goroutine that created the Scheduler; calling from any other goroutine
// panics with *WrongGoroutineError.
type Scheduler struct {
	opts *schedulerOptions

	creatorGoroutine uint64
	state            SchedulerState

	primary   []func()
	secondary []func()

	timers *timerHeap

	poller  poller
	fds     map[int]struct{}
	bridge  *ThreadBridge

	exitHooks []func()

	metrics Metrics

	singleton bool // true if this instance holds processHasScheduler
}

// New constructs a Scheduler bound to the calling goroutine. Only one
// Scheduler may exist per process at a time unless the test-only
// withAllowMultiple option is set; New returns ErrAlreadyRunning
// otherwise.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	singleton := false
	if !cfg.allowMultiple {
		if !processHasScheduler.CompareAndSwap(false, true) {
			return nil, ErrAlreadyRunning
		}
		singleton = true
	}

	// SIGPIPE is blocked process-wide so that writes to a peer-closed
	// socket surface as an EPIPE error return instead of terminating the
	// process, matching this system's signal-handling contract.
	signalIgnore()

	p := newPoller()
	if err := p.init(); err != nil {
		if singleton {
			processHasScheduler.Store(false)
		}
		return nil, fmt.Errorf("async: initializing poller: %w", err)
	}

	sched := &Scheduler{
		opts:             cfg,
		creatorGoroutine: getGoroutineID(),
		state:            StateCreated,
		timers:           newTimerHeap(),
		poller:           p,
		fds:              make(map[int]struct{}),
		singleton:        singleton,
	}

	bridge, err := newThreadBridge(sched)
	if err != nil {
		_ = p.close()
		if singleton {
			processHasScheduler.Store(false)
		}
		return nil, fmt.Errorf("async: initializing thread bridge: %w", err)
	}
	sched.bridge = bridge
	if err := bridge.register(); err != nil {
		_ = p.close()
		if singleton {
			processHasScheduler.Store(false)
		}
		return nil, err
	}

	logDebug(cfg.logger, "scheduler created", nil)
	return sched, nil
}

func (s *Scheduler) assertOwnerGoroutine() {
	if got := getGoroutineID(); got != s.creatorGoroutine {
		panic(&WrongGoroutineError{Want: s.creatorGoroutine, Got: got})
	}
}

// Metrics returns a snapshot of the scheduler's runtime counters. Only
// meaningful if WithMetrics(true) was supplied to New; otherwise the
// counters simply never advance.
func (s *Scheduler) Metrics() Metrics {
	return s.metrics
}

// Schedule enqueues callback for the next turn.
func (s *Scheduler) Schedule(callback func()) {
	s.assertOwnerGoroutine()
	s.primary = append(s.primary, callback)
}

// AddFD registers callback to fire whenever fd becomes ready per events.
// Duplicate registration of the same fd is an error.
func (s *Scheduler) AddFD(fd int, events IOEvents, callback func(IOEvents)) error {
	s.assertOwnerGoroutine()
	if _, ok := s.fds[fd]; ok {
		logWarn(s.opts.logger, "duplicate fd registration", func(b *logiface.Builder[*logifaceslog.Event]) {
			b.Int("fd", fd)
		})
		return ErrDuplicateFD
	}
	if err := s.poller.registerFD(fd, events, callback); err != nil {
		return err
	}
	s.fds[fd] = struct{}{}
	return nil
}

// RemoveFD unregisters fd. Idempotent: removing an fd that was already
// dropped is a no-op, not an error.
func (s *Scheduler) RemoveFD(fd int) error {
	s.assertOwnerGoroutine()
	if _, ok := s.fds[fd]; !ok {
		return nil
	}
	delete(s.fds, fd)
	return s.poller.unregisterFD(fd)
}

// ModifyFD updates the readiness mask for an already-registered fd.
func (s *Scheduler) ModifyFD(fd int, events IOEvents) error {
	s.assertOwnerGoroutine()
	if _, ok := s.fds[fd]; !ok {
		return ErrFDNotFound
	}
	return s.poller.modifyFD(fd, events)
}

// After schedules callback to run once the monotonic clock advances past
// now+span. Returns an id usable with Cancel.
func (s *Scheduler) After(span time.Duration, callback func()) TimerID {
	s.assertOwnerGoroutine()
	if span < 0 {
		span = 0
	}
	deadline := s.now().Add(span).UnixNano()
	return s.timers.schedule(deadline, callback)
}

// Cancel removes a not-yet-fired timer. Idempotent: cancelling an unknown
// or already-fired id is a no-op.
func (s *Scheduler) Cancel(id TimerID) {
	s.assertOwnerGoroutine()
	s.timers.cancel(id)
	if s.opts.metricsEnabled {
		s.metrics.TimersCanceled++
	}
}

// OnExit registers a cleanup hook to run once, in registration order, at
// Close.
func (s *Scheduler) OnExit(callback func()) {
	s.assertOwnerGoroutine()
	s.exitHooks = append(s.exitHooks, callback)
}

func (s *Scheduler) now() time.Time {
	return s.opts.clock()
}

// Run drives turns until stop() returns true and the ready queue is
// empty. Each turn: migrate expired timers, drain the ready queue
// (callbacks enqueued during the drain defer to the next turn), and, if
// no work is pending and stop() is false, block in the readiness
// primitive for up to min(next-timer-deadline, maxTimeout).
func (s *Scheduler) Run(stop func() bool) error {
	s.assertOwnerGoroutine()
	s.state = StateRunning
	logDebug(s.opts.logger, "scheduler running", nil)
	for {
		turnStart := s.now()
		s.migrateExpiredTimers()

		s.primary, s.secondary = s.secondary, s.primary
		for _, cb := range s.secondary {
			cb()
			if s.opts.metricsEnabled {
				s.metrics.TasksRun++
			}
		}
		s.secondary = s.secondary[:0]

		if stop() && len(s.primary) == 0 {
			if s.opts.metricsEnabled {
				s.metrics.recordTurn(s.now().Sub(turnStart))
			}
			return nil
		}

		timeout := s.nextTimeout()
		n, err := s.poller.poll(timeout)
		if err != nil {
			logErr(s.opts.logger, "poll failed", err)
			return err
		}
		if s.opts.metricsEnabled {
			s.metrics.IOEventsServed += uint64(n)
			s.metrics.recordTurn(s.now().Sub(turnStart))
		}
	}
}

// migrateExpiredTimers moves every timer whose deadline has passed from
// the timer heap into the ready queue, in deadline order (ties by
// registration order).
func (s *Scheduler) migrateExpiredTimers() {
	now := s.now().UnixNano()
	for _, e := range s.timers.popExpired(now) {
		cb := e.callback
		s.primary = append(s.primary, cb)
		if s.opts.metricsEnabled {
			s.metrics.TimersFired++
		}
	}
}

// nextTimeout computes the poll timeout in milliseconds: 0 if there is
// pending ready-queue work, otherwise the time until the next timer
// deadline, capped at opts.maxTimeout.
func (s *Scheduler) nextTimeout() int {
	if len(s.primary) > 0 {
		return 0
	}
	maxMs := int(s.opts.maxTimeout / time.Millisecond)
	deadline, ok := s.timers.peekDeadline()
	if !ok {
		return maxMs
	}
	remaining := time.Duration(deadline-s.now().UnixNano()) * time.Nanosecond
	if remaining <= 0 {
		return 0
	}
	ms := int(remaining / time.Millisecond)
	if ms > maxMs {
		return maxMs
	}
	if ms < 1 && remaining > 0 {
		return 1
	}
	return ms
}

// Close runs exit hooks in registration order, closes the readiness
// primitive, and drops all fd registrations.
func (s *Scheduler) Close() error {
	s.assertOwnerGoroutine()
	if s.state == StateClosed {
		return nil
	}
	for _, hook := range s.exitHooks {
		hook()
	}
	s.bridge.close()
	err := s.poller.close()
	s.state = StateClosed
	if s.singleton {
		processHasScheduler.Store(false)
	}
	logDebug(s.opts.logger, "scheduler closed", nil)
	return err
}

// Bridge returns the Scheduler's ThreadBridge, the sole concurrent data
// structure in this package, for off-goroutine producers (subprocess
// waiters, user goroutines) to hand work back to the scheduler goroutine.
func (s *Scheduler) Bridge() *ThreadBridge {
	return s.bridge
}

var sigpipeIgnoreOnce atomic.Bool

// signalIgnore blocks SIGPIPE process-wide so that writes to a
// peer-closed socket surface as an EPIPE error return instead of
// terminating the process. Idempotent across repeated Scheduler
// construction within the same process.
func signalIgnore() {
	if sigpipeIgnoreOnce.CompareAndSwap(false, true) {
		signal.Ignore(syscall.SIGPIPE)
	}
}
