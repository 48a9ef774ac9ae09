//go:build darwin

package async

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pollPoller implements poller on Darwin using poll(2), level-triggered.
//
// poll(2) rather than kqueue is used deliberately here: this runtime's
// portable backend contract calls for level-triggered readiness, so the
// registered callback must re-check until EAGAIN exactly as the Linux
// edge-triggered path does, keeping both platforms honest about
// drain-to-EAGAIN semantics. See DESIGN.md for the full justification.
type pollPoller struct {
	fds map[int]*pollFDInfo
	// pollfds is rebuilt from fds before every poll() call; level-triggered
	// poll has no persistent kernel-side registration to maintain.
	pollfds []unix.PollFd
}

type pollFDInfo struct {
	callback IOCallback
	events   IOEvents
}

func newPoller() poller {
	return &pollPoller{fds: make(map[int]*pollFDInfo)}
}

func (p *pollPoller) init() error { return nil }

func (p *pollPoller) close() error { return nil }

func (p *pollPoller) registerFD(fd int, events IOEvents, cb IOCallback) error {
	if _, ok := p.fds[fd]; ok {
		return ErrDuplicateFD
	}
	p.fds[fd] = &pollFDInfo{callback: cb, events: events}
	return nil
}

func (p *pollPoller) unregisterFD(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return nil
	}
	delete(p.fds, fd)
	return nil
}

func (p *pollPoller) modifyFD(fd int, events IOEvents) error {
	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotFound
	}
	info.events = events
	return nil
}

func (p *pollPoller) poll(timeoutMs int) (int, error) {
	p.pollfds = p.pollfds[:0]
	order := make([]int, 0, len(p.fds))
	for fd, info := range p.fds {
		p.pollfds = append(p.pollfds, unix.PollFd{
			Fd:     int32(fd),
			Events: eventsToPoll(info.events),
		})
		order = append(order, fd)
	}
	if len(p.pollfds) == 0 {
		// poll(2) with an empty set still sleeps for timeoutMs, which is
		// exactly the behaviour wanted when waiting purely on timers.
		n, err := unix.Poll(nil, timeoutMs)
		if err != nil && err != unix.EINTR {
			return 0, fmt.Errorf("async: poll: %w", err)
		}
		return n, nil
	}

	n, err := unix.Poll(p.pollfds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("async: poll: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	fired := 0
	for i, pfd := range p.pollfds {
		if pfd.Revents == 0 {
			continue
		}
		fd := order[i]
		info, ok := p.fds[fd]
		if !ok || info.callback == nil {
			continue
		}
		fired++
		info.callback(pollToEvents(pfd.Revents))
	}
	return fired, nil
}

func eventsToPoll(events IOEvents) int16 {
	var e int16
	if events&EventRead != 0 {
		e |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func pollToEvents(revents int16) IOEvents {
	var events IOEvents
	if revents&unix.POLLIN != 0 {
		events |= EventRead
	}
	if revents&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if revents&unix.POLLERR != 0 {
		events |= EventError
	}
	if revents&(unix.POLLHUP|unix.POLLNVAL) != 0 {
		events |= EventHangup
	}
	return events
}
