//go:build darwin

package async

import "golang.org/x/sys/unix"

// newWakeFD creates a self-pipe used by ThreadBridge to wake the
// scheduler goroutine out of a blocked poll(2). Darwin has no eventfd, so
// a non-blocking pipe stands in for it as a portable wakeup fallback.
func newWakeFD() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

// signalWakeFD writes a single byte to the pipe's write end.
func signalWakeFD(writeFD int) error {
	_, err := unix.Write(writeFD, []byte{1})
	return err
}

// drainWakeFD reads every pending byte off the pipe's read end.
func drainWakeFD(readFD int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	_ = unix.Close(writeFD)
}
