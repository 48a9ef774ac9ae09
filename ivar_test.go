package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	sched, err := New(withAllowMultiple())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })
	return sched
}

// runUntil drives turns until done is true, bailing out after a generous
// number of turns so a broken test fails fast instead of hanging.
func runUntil(t *testing.T, sched *Scheduler, done *bool) {
	t.Helper()
	turns := 0
	err := sched.Run(func() bool {
		turns++
		if turns > 10000 {
			t.Fatal("runUntil: exceeded turn budget without completion")
		}
		return *done
	})
	require.NoError(t, err)
}

func TestIvarFillSchedulesDelivery(t *testing.T) {
	sched := newTestScheduler(t)
	iv := NewIvar[int](sched)

	var got int
	done := false
	iv.OnDetermined(func(v int) {
		got = v
		done = true
	})
	iv.Fill(42)

	assert.False(t, done, "delivery must not be synchronous")
	runUntil(t, sched, &done)
	assert.Equal(t, 42, got)
}

func TestIvarDoubleFillPanics(t *testing.T) {
	sched := newTestScheduler(t)
	iv := NewIvar[int](sched)
	iv.Fill(1)
	assert.Panics(t, func() { iv.Fill(2) })
}

func TestIvarDoubleListenerPanics(t *testing.T) {
	sched := newTestScheduler(t)
	iv := NewIvar[int](sched)
	iv.OnDetermined(func(int) {})
	assert.Panics(t, func() { iv.OnDetermined(func(int) {}) })
}

func TestIvarMultiFanOut(t *testing.T) {
	sched := newTestScheduler(t)
	m := NewIvarMulti[string](sched)

	count := 0
	for i := 0; i < 3; i++ {
		m.OnDetermined(func(string) { count++ })
	}
	m.Fill("hi")

	done := false
	sched.Schedule(func() { done = true })
	runUntil(t, sched, &done)
	assert.Equal(t, 3, count)
}

func TestIvarMultiListenerAfterFillStillDelivers(t *testing.T) {
	sched := newTestScheduler(t)
	m := NewIvarMulti[int](sched)
	m.Fill(7)

	got := -1
	m.OnDetermined(func(v int) { got = v })

	done := false
	sched.Schedule(func() { done = true })
	runUntil(t, sched, &done)
	assert.Equal(t, 7, got)
}
