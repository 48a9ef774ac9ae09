package async

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingletonEnforcement(t *testing.T) {
	s1, err := New()
	require.NoError(t, err)
	defer s1.Close()

	_, err = New()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestWithAllowMultipleBypassesSingleton(t *testing.T) {
	s1, err := New(withAllowMultiple())
	require.NoError(t, err)
	defer s1.Close()

	s2, err := New(withAllowMultiple())
	require.NoError(t, err)
	defer s2.Close()
}

func TestAfterFiresInDeadlineOrder(t *testing.T) {
	now := time.Unix(0, 0)
	sched, err := New(withAllowMultiple(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	var order []int
	sched.After(3*time.Second, func() { order = append(order, 3) })
	sched.After(1*time.Second, func() { order = append(order, 1) })
	sched.After(2*time.Second, func() { order = append(order, 2) })

	now = now.Add(5 * time.Second)
	err = sched.Run(func() bool { return len(order) == 3 })
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestCancelTimerPreventsFiring(t *testing.T) {
	now := time.Unix(0, 0)
	sched, err := New(withAllowMultiple(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	fired := false
	id := sched.After(time.Second, func() { fired = true })
	sched.Cancel(id)

	now = now.Add(2 * time.Second)
	done := false
	sched.Schedule(func() { done = true })
	err = sched.Run(func() bool { return done })
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestDuplicateFDRegistrationErrors(t *testing.T) {
	sched := newTestScheduler(t)
	r, w, err := newWakeFD()
	require.NoError(t, err)
	defer closeWakeFD(r, w)

	err = sched.AddFD(r, EventRead, func(IOEvents) {})
	require.NoError(t, err)
	defer sched.RemoveFD(r)

	err = sched.AddFD(r, EventRead, func(IOEvents) {})
	assert.ErrorIs(t, err, ErrDuplicateFD)
}

func TestRemoveFDIsIdempotent(t *testing.T) {
	sched := newTestScheduler(t)
	assert.NoError(t, sched.RemoveFD(99999))
}

func TestOnExitHooksRunInOrder(t *testing.T) {
	sched := newTestScheduler(t)
	var order []int
	sched.OnExit(func() { order = append(order, 1) })
	sched.OnExit(func() { order = append(order, 2) })
	require.NoError(t, sched.Close())
	assert.Equal(t, []int{1, 2}, order)
}

func TestWrongGoroutineAccessPanics(t *testing.T) {
	sched := newTestScheduler(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Panics(t, func() { sched.Schedule(func() {}) })
	}()
	<-done
}
