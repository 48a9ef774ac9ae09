package async

import "time"

// Metrics holds lightweight runtime counters for a Scheduler. This is
// plain data updated only on the scheduler goroutine: the single-goroutine
// contract makes atomics and locking here pure overhead. Collection is
// gated on WithMetrics(true); otherwise the counters never advance.
type Metrics struct {
	Turns          uint64
	TasksRun       uint64
	TimersFired    uint64
	TimersCanceled uint64
	IOEventsServed uint64
	LastTurnTook   time.Duration
}

func (m *Metrics) recordTurn(d time.Duration) {
	m.Turns++
	m.LastTurnTook = d
}
