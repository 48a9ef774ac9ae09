package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipePushThenNextValue(t *testing.T) {
	sched := newTestScheduler(t)
	p := NewPipe[int](sched)
	p.Push(1)
	p.Push(2)

	task := Go(sched, func(y *Yield) []int {
		var out []int
		out = append(out, NextValue(y, p).Value)
		out = append(out, NextValue(y, p).Value)
		return out
	})

	assert.True(t, task.Done())
	assert.Equal(t, []int{1, 2}, task.Value())
}

func TestPipeNextValueSuspendsUntilPush(t *testing.T) {
	sched := newTestScheduler(t)
	p := NewPipe[string](sched)

	task := Go(sched, func(y *Yield) string {
		return NextValue(y, p).Value
	})
	assert.False(t, task.Done())

	p.Push("hello")
	err := sched.Run(func() bool { return task.Done() })
	require.NoError(t, err)
	assert.Equal(t, "hello", task.Value())
}

func TestPipeCloseSignalsNone(t *testing.T) {
	sched := newTestScheduler(t)
	p := NewPipe[int](sched)

	task := Go(sched, func(y *Yield) bool {
		return NextValue(y, p).Some
	})
	assert.False(t, task.Done())

	p.Close()
	err := sched.Run(func() bool { return task.Done() })
	require.NoError(t, err)
	assert.False(t, task.Value())
}

func TestMapPipeTransformsValues(t *testing.T) {
	sched := newTestScheduler(t)
	in := NewPipe[int](sched)
	out := MapPipe(sched, in, func(v int) int { return v * v })

	var got []int
	collector := Go(sched, func(y *Yield) Unit {
		IterPipe(y, out, func(v int) { got = append(got, v) })
		return unit
	})

	in.Push(2)
	in.Push(3)
	in.Close()

	err := sched.Run(func() bool { return collector.Done() })
	require.NoError(t, err)
	assert.Equal(t, []int{4, 9}, got)
}

func TestBlockingPushWaitsForReader(t *testing.T) {
	sched := newTestScheduler(t)
	p := NewPipe[int](sched)

	pushed := false
	Go(sched, func(y *Yield) Unit {
		BlockingPush(y, p, 7)
		pushed = true
		return unit
	})
	assert.False(t, pushed, "BlockingPush must wait for a reader before completing")

	var got int
	reader := Go(sched, func(y *Yield) int {
		return NextValue(y, p).Value
	})

	err := sched.Run(func() bool { return reader.Done() })
	require.NoError(t, err)
	got = reader.Value()
	assert.Equal(t, 7, got)
	assert.True(t, pushed)
}
