//go:build linux

package async

import "golang.org/x/sys/unix"

// newWakeFD creates an eventfd used by ThreadBridge to wake the scheduler
// goroutine out of a blocked poll. The same fd serves as both read and
// write end, matching eventfd semantics.
func newWakeFD() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return 0, 0, err
	}
	return fd, fd, nil
}

// signalWakeFD increments the eventfd counter by one, waking anyone
// blocked in epoll_wait on it.
func signalWakeFD(writeFD int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(writeFD, buf[:])
	return err
}

// drainWakeFD resets the eventfd counter to zero.
func drainWakeFD(readFD int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
}
