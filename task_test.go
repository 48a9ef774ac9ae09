package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoRunsBodyUntilFirstSuspension(t *testing.T) {
	sched := newTestScheduler(t)

	started := false
	task := Go(sched, func(y *Yield) int {
		started = true
		return 99
	})

	assert.True(t, started, "body must run synchronously up to its first suspension or return")
	assert.True(t, task.Done())
	assert.Equal(t, 99, task.Value())
}

func TestAwaitOnAlreadyDeterminedDoesNotSuspend(t *testing.T) {
	sched := newTestScheduler(t)
	d := Determined(sched, "x")

	var got string
	task := Go(sched, func(y *Yield) int {
		got = Await(y, d)
		return 0
	})

	assert.True(t, task.Done())
	assert.Equal(t, "x", got)
}

func TestAwaitSuspendsUntilIvarFilled(t *testing.T) {
	sched := newTestScheduler(t)
	iv := NewIvar[int](sched)

	task := Go(sched, func(y *Yield) int {
		return Await(y, deferredOverIvar(iv)) * 2
	})

	assert.False(t, task.Done(), "task must suspend until the ivar resolves")

	iv.Fill(21)
	err := sched.Run(func() bool { return task.Done() })
	assert.NoError(t, err)
	assert.True(t, task.Done())
	assert.Equal(t, 42, task.Value())
}

func TestAwaitTaskChaining(t *testing.T) {
	sched := newTestScheduler(t)

	inner := Go(sched, func(y *Yield) int {
		iv := NewIvar[int](sched)
		sched.Schedule(func() { iv.Fill(10) })
		return Await(y, deferredOverIvar(iv))
	})

	outer := Go(sched, func(y *Yield) int {
		return AwaitTask(y, inner) + 1
	})

	done := false
	err := sched.Run(func() bool {
		done = outer.Done()
		return done
	})
	assert.NoError(t, err)
	assert.Equal(t, 11, outer.Value())
}

func TestTaskToDeferred(t *testing.T) {
	sched := newTestScheduler(t)
	iv := NewIvar[int](sched)
	task := Go(sched, func(y *Yield) int {
		return Await(y, deferredOverIvar(iv))
	})

	d := task.ToDeferred()
	var got int
	done := false
	d.Iter(func(v int) { got = v; done = true })

	iv.Fill(5)
	runUntil(t, sched, &done)
	assert.Equal(t, 5, got)
}

func TestPanicInTaskBodyIsReraisedOnSchedulerGoroutine(t *testing.T) {
	sched := newTestScheduler(t)
	Go(sched, func(y *Yield) int {
		panic("boom")
	})

	assert.Panics(t, func() {
		_ = sched.Run(func() bool { return true })
	})
}
