package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeferredDetermined(t *testing.T) {
	sched := newTestScheduler(t)
	d := Determined(sched, 5)
	assert.True(t, d.IsDetermined())

	got := -1
	done := false
	d.Iter(func(v int) { got = v; done = true })
	assert.False(t, done, "Iter must always schedule, even on an already-determined Deferred")
	runUntil(t, sched, &done)
	assert.Equal(t, 5, got)
}

func TestDeferredNeverNeverResolves(t *testing.T) {
	d := Never[int]()
	assert.False(t, d.IsDetermined())
	called := false
	d.Iter(func(int) { called = true })
	assert.False(t, called)
}

func TestDeferredMap(t *testing.T) {
	sched := newTestScheduler(t)
	iv := NewIvar[int](sched)
	d := deferredOverIvar(iv)
	mapped := Map(d, func(v int) string { return "n=" + string(rune('0'+v)) })

	iv.Fill(3)

	var got string
	done := false
	mapped.Iter(func(v string) { got = v; done = true })
	runUntil(t, sched, &done)
	assert.Equal(t, "n=3", got)
}

func TestDeferredBindFillOrderIndependent(t *testing.T) {
	sched := newTestScheduler(t)
	a := NewIvar[string](sched)
	b := NewIvar[string](sched)

	d := Bind(deferredOverIvar(a), func(x string) Deferred[string] {
		return Map(deferredOverIvar(b), func(y string) string { return x + "/" + y })
	})

	// Fill b before a: resolution order must not affect the result,
	// since Bind only subscribes to b once a has already resolved.
	b.Fill("inner string")
	a.Fill("hello")

	var got string
	done := false
	d.Iter(func(v string) { got = v; done = true })
	runUntil(t, sched, &done)
	assert.Equal(t, "hello/inner string", got)
}

func TestDeferredBind(t *testing.T) {
	sched := newTestScheduler(t)
	outer := NewIvar[int](sched)
	bound := Bind(deferredOverIvar(outer), func(v int) Deferred[int] {
		inner := NewIvar[int](sched)
		sched.Schedule(func() { inner.Fill(v * 10) })
		return deferredOverIvar(inner)
	})

	outer.Fill(4)

	var got int
	done := false
	bound.Iter(func(v int) { got = v; done = true })
	runUntil(t, sched, &done)
	assert.Equal(t, 40, got)
}
