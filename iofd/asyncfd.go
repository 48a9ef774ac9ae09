package iofd

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-catrate"
	"golang.org/x/sys/unix"

	"github.com/bec-ca/async"
)

// ErrClosed is returned by operations attempted on a closed AsyncFD.
var ErrClosed = errors.New("iofd: fd already closed")

// ReadResult is the outcome of a non-blocking read: either some bytes were
// read, the peer reached EOF, or the read would have blocked.
type ReadResult struct {
	N   int
	EOF bool
}

// AsyncFD wraps a non-blocking file descriptor registered with a
// scheduler, queueing writes that would block and delivering read
// readiness through a caller-supplied callback. Grounded on the original
// AsyncFD: registration captures a ready callback that first drains
// pending output, then calls the caller's readiness hook.
type AsyncFD struct {
	sched      *async.Scheduler
	fd         int
	isSocket   bool
	closed     bool
	readyFn    func()
	outgoing   DataBuffer
	flushedIv  *async.IvarMulti[error]
	closedIv   *async.IvarMulti[async.Unit]
	writeLimit *catrate.Limiter
}

// Of registers fd with sched as non-blocking and returns the wrapping
// AsyncFD. isSocket selects send/recv vs write/read for the underlying
// syscalls, matching the original's socket/pipe distinction.
//
// writeLimit, if non-nil, rate-limits flush attempts: while output is
// queued, each attempt first asks writeLimit for the fd's category, and
// when it is over budget the attempt is skipped and the queued output
// waits for the next readiness event or Write call. No timer is set for
// a skipped attempt. A nil writeLimit disables this and flushes purely on
// fd readiness, as the original does.
func Of(sched *async.Scheduler, fd int, isSocket bool, writeLimit *catrate.Limiter) (*AsyncFD, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("iofd: set nonblocking: %w", err)
	}
	a := &AsyncFD{sched: sched, fd: fd, isSocket: isSocket, writeLimit: writeLimit}
	if err := sched.AddFD(fd, async.EventRead|async.EventWrite, a.handleReady); err != nil {
		return nil, err
	}
	return a, nil
}

// SetReadyCallback installs the hook invoked after every readiness event,
// once pending output has been (re)flushed. There is room for exactly one
// callback, as in the original.
func (a *AsyncFD) SetReadyCallback(fn func()) { a.readyFn = fn }

func (a *AsyncFD) handleReady(events async.IOEvents) {
	if a.closed {
		return
	}
	// a write error with nobody listening is dropped, mirroring the
	// original's own TODO-marked "handle error better" path.
	_ = a.maybeWrite()
	if a.readyFn != nil {
		a.readyFn()
	}
}

// Write appends data to the outgoing buffer and attempts to flush
// immediately, returning any error from that flush attempt. A write that
// cannot be fully sent is queued and retried on the next readiness event.
func (a *AsyncFD) Write(data []byte) error {
	if a.closed {
		return ErrClosed
	}
	a.outgoing.Write(data)
	return a.maybeWrite()
}

func (a *AsyncFD) maybeWrite() error {
	if a.closed {
		return ErrClosed
	}
	if a.writeLimit != nil && a.outgoing.Len() > 0 {
		if _, ok := a.writeLimit.Allow(a.fd); !ok {
			// over budget for this category; leave outgoing queued and
			// wait for the next readiness event to retry.
			return nil
		}
	}
	for a.outgoing.Len() > 0 {
		n, err := a.rawWrite(a.outgoing.Bytes())
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			return err
		}
		if n == 0 {
			break
		}
		a.outgoing.Consume(n)
	}
	if a.outgoing.Empty() && a.flushedIv != nil {
		iv := a.flushedIv
		a.flushedIv = nil
		iv.Fill(nil)
	}
	return nil
}

// rawWrite and rawRead use write(2)/read(2) uniformly: for a connected
// stream socket fd these behave identically to send(2)/recv(2) without
// flags, so the original's socket/pipe branch collapses to one path here.
func (a *AsyncFD) rawWrite(p []byte) (int, error) {
	return unix.Write(a.fd, p)
}

func (a *AsyncFD) rawRead(buf []byte) (int, error) {
	return unix.Read(a.fd, buf)
}

// Read performs one non-blocking read into buf, appending whatever was
// read (if any) to dst.
func (a *AsyncFD) Read(dst *DataBuffer, buf []byte) (ReadResult, error) {
	if a.closed {
		return ReadResult{}, ErrClosed
	}
	n, err := a.rawRead(buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return ReadResult{}, nil
		}
		return ReadResult{}, err
	}
	if n == 0 {
		return ReadResult{EOF: true}, nil
	}
	dst.Write(buf[:n])
	return ReadResult{N: n}, nil
}

// readOutcome carries a ReadAsync result through an IvarMulti, since that
// is the only cross-package Ivar-like type whose Deferred() this package
// can reach.
type readOutcome struct {
	res ReadResult
	err error
}

// ReadAsync suspends the calling task until data, EOF, or an error is
// available, then performs the same read Read does.
func ReadAsync(y *async.Yield, a *AsyncFD, dst *DataBuffer, buf []byte) (ReadResult, error) {
	iv := async.NewIvarMulti[readOutcome](a.sched)
	var attempt func()
	attempt = func() {
		res, err := a.Read(dst, buf)
		if err != nil || res.N > 0 || res.EOF {
			iv.Fill(readOutcome{res, err})
			return
		}
		prev := a.readyFn
		a.readyFn = func() {
			a.readyFn = prev
			attempt()
		}
	}
	attempt()
	o := async.Await(y, iv.Deferred())
	return o.res, o.err
}

// Flushed returns a Deferred resolving once the outgoing buffer has fully
// drained, or immediately (but still on a later turn) if it already has.
func (a *AsyncFD) Flushed() async.Deferred[error] {
	if a.outgoing.Empty() {
		return async.Determined(a.sched, error(nil))
	}
	if a.flushedIv == nil {
		a.flushedIv = async.NewIvarMulti[error](a.sched)
	}
	return a.flushedIv.Deferred()
}

// Closed returns a Deferred resolving once the fd has been closed.
func (a *AsyncFD) Closed() async.Deferred[async.Unit] {
	if a.closed {
		return async.Determined(a.sched, async.Unit{})
	}
	if a.closedIv == nil {
		a.closedIv = async.NewIvarMulti[async.Unit](a.sched)
	}
	return a.closedIv.Deferred()
}

// Close removes the fd from the scheduler and closes it, resolving any
// pending Flushed/Closed observers. Safe to call more than once.
func (a *AsyncFD) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.sched.RemoveFD(a.fd)
	closeErr := unix.Close(a.fd)
	if a.flushedIv != nil {
		iv := a.flushedIv
		a.flushedIv = nil
		iv.Fill(nil)
	}
	if a.closedIv != nil {
		a.closedIv.Fill(async.Unit{})
	}
	if err != nil {
		return err
	}
	return closeErr
}

// IsClosed reports whether Close has run.
func (a *AsyncFD) IsClosed() bool { return a.closed }

// FD returns the underlying file descriptor.
func (a *AsyncFD) FD() int { return a.fd }

// Accept performs one non-blocking accept(2), wrapping the accepted
// connection as a new socket AsyncFD, or reports ok=false if no
// connection was pending.
func (a *AsyncFD) Accept() (conn *AsyncFD, ok bool, err error) {
	nfd, _, acceptErr := unix.Accept(a.fd)
	if acceptErr != nil {
		if acceptErr == unix.EAGAIN || acceptErr == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, acceptErr
	}
	conn, err = Of(a.sched, nfd, true, a.writeLimit)
	if err != nil {
		unix.Close(nfd)
		return nil, false, err
	}
	return conn, true, nil
}
