//go:build linux

package async

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollPoller implements poller on Linux using epoll in edge-triggered
// mode (EPOLLET). It carries no mutex or atomics: the Scheduler contract
// guarantees every call originates on the single scheduler goroutine, so
// a plain map suffices.
type epollPoller struct {
	epfd     int
	fds      map[int]*epollFDInfo
	eventBuf [256]unix.EpollEvent
}

type epollFDInfo struct {
	callback IOCallback
	events   IOEvents
}

func newPoller() poller {
	return &epollPoller{fds: make(map[int]*epollFDInfo)}
}

func (p *epollPoller) init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("async: epoll_create1: %w", err)
	}
	p.epfd = fd
	return nil
}

func (p *epollPoller) close() error {
	if p.epfd == 0 {
		return nil
	}
	return unix.Close(p.epfd)
}

func (p *epollPoller) registerFD(fd int, events IOEvents, cb IOCallback) error {
	if _, ok := p.fds[fd]; ok {
		return ErrDuplicateFD
	}
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events) | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("async: epoll_ctl(ADD, %d): %w", fd, err)
	}
	p.fds[fd] = &epollFDInfo{callback: cb, events: events}
	return nil
}

func (p *epollPoller) unregisterFD(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return nil
	}
	delete(p.fds, fd)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("async: epoll_ctl(DEL, %d): %w", fd, err)
	}
	return nil
}

func (p *epollPoller) modifyFD(fd int, events IOEvents) error {
	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotFound
	}
	info.events = events
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events) | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("async: epoll_ctl(MOD, %d): %w", fd, err)
	}
	return nil
}

func (p *epollPoller) poll(timeoutMs int) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("async: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		info, ok := p.fds[fd]
		if !ok || info.callback == nil {
			continue
		}
		info.callback(epollToEvents(p.eventBuf[i].Events))
	}
	return n, nil
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
