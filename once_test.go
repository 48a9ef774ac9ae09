package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnceRunsProducerExactlyOnce(t *testing.T) {
	sched := newTestScheduler(t)
	starts := 0
	o := NewOnce(sched, func(y *Yield) int {
		starts++
		return 5
	})

	var r1, r2 int
	t1 := Go(sched, func(y *Yield) int { return o.Call(y) })
	t2 := Go(sched, func(y *Yield) int { return o.Call(y) })

	err := sched.Run(func() bool { return t1.Done() && t2.Done() })
	require.NoError(t, err)
	r1, r2 = t1.Value(), t2.Value()

	assert.Equal(t, 1, starts)
	assert.Equal(t, 5, r1)
	assert.Equal(t, 5, r2)
}

func TestClosedCollapsesConcurrentCalls(t *testing.T) {
	sched := newTestScheduler(t)
	closes := 0
	c := NewClosed(sched, func(y *Yield) error {
		closes++
		return nil
	})

	t1 := Go(sched, func(y *Yield) error { return c.Close(y) })
	t2 := Go(sched, func(y *Yield) error { return c.Close(y) })
	waiter := Go(sched, func(y *Yield) error { return c.WaitClosed(y) })

	err := sched.Run(func() bool { return t1.Done() && t2.Done() && waiter.Done() })
	require.NoError(t, err)

	assert.Equal(t, 1, closes)
	assert.NoError(t, t1.Value())
	assert.NoError(t, t2.Value())
	assert.NoError(t, waiter.Value())
}
