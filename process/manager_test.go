package process

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bec-ca/async"
)

func newTestScheduler(t *testing.T) *async.Scheduler {
	t.Helper()
	sched, err := async.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })
	return sched
}

func TestSpawnReportsExitCode(t *testing.T) {
	sched := newTestScheduler(t)
	mgr, err := New(sched)
	require.NoError(t, err)

	var status int
	var exited bool
	_, err = mgr.Spawn(exec.Command("sh", "-c", "exit 7"), func(exitStatus int) {
		status = exitStatus
		exited = true
	})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	err = sched.Run(func() bool { return exited || time.Now().After(deadline) })
	require.NoError(t, err)
	require.True(t, exited)
	require.Equal(t, 7, status)
	mgr.Close()
}

func TestSpawnSuccessReportsZero(t *testing.T) {
	sched := newTestScheduler(t)
	mgr, err := New(sched)
	require.NoError(t, err)

	var status = -1
	var exited bool
	_, err = mgr.Spawn(exec.Command("true"), func(exitStatus int) {
		status = exitStatus
		exited = true
	})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	err = sched.Run(func() bool { return exited || time.Now().After(deadline) })
	require.NoError(t, err)
	require.True(t, exited)
	require.Equal(t, 0, status)
	mgr.Close()
}

func TestCloseWithOutstandingChildrenPanics(t *testing.T) {
	sched := newTestScheduler(t)
	mgr, err := New(sched)
	require.NoError(t, err)

	_, err = mgr.Spawn(exec.Command("sleep", "5"), func(int) {})
	require.NoError(t, err)

	require.Panics(t, func() { mgr.Close() })
}
