package iofd

import (
	"fmt"
	"net"

	"github.com/joeycumines/go-catrate"
	"golang.org/x/sys/unix"

	"github.com/bec-ca/async"
)

// DataCallback receives bytes read from a SocketClient, or a non-nil err
// on read failure; a call with len(buf)==0 and err==nil signals EOF,
// matching the original's "empty DataBuffer" EOF convention.
type DataCallback func(buf []byte, err error)

// SocketClient wraps a connected stream socket's AsyncFD, dispatching
// incoming bytes to a single registered DataCallback and exposing
// Flushed/Closed passthroughs for backpressure and shutdown observation.
type SocketClient struct {
	fd           *AsyncFD
	dataCallback DataCallback
	inCallback   bool
	closed       bool
}

// Connect opens a non-blocking TCP connection to addr:port (addr resolved
// via ResolveHost) and wraps it as a SocketClient.
func Connect(sched *async.Scheduler, addr net.IP, port int, writeLimit *catrate.Limiter) (*SocketClient, error) {
	family := unix.AF_INET
	if addr.To4() == nil {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("iofd: socket: %w", err)
	}
	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		var a unix.SockaddrInet6
		copy(a.Addr[:], addr.To16())
		a.Port = port
		sa = &a
	} else {
		var a unix.SockaddrInet4
		copy(a.Addr[:], addr.To4())
		a.Port = port
		sa = &a
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("iofd: connect: %w", err)
	}
	afd, err := Of(sched, fd, true, writeLimit)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return OfFD(afd), nil
}

// OfFD wraps an already-registered AsyncFD as a SocketClient, hooking its
// ready callback the way the original's of_fd does.
func OfFD(fd *AsyncFD) *SocketClient {
	c := &SocketClient{fd: fd}
	fd.SetReadyCallback(c.onReady)
	return c
}

// ResolveHost resolves hostname to a single IP address, preferring
// whichever address family the resolver returns first.
func ResolveHost(hostname string) (net.IP, error) {
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil, fmt.Errorf("iofd: resolve host: %w", err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("iofd: no address found for %s", hostname)
	}
	return ips[0], nil
}

// SetDataCallback installs cb as the sole receiver of incoming bytes.
// Panics if a callback is already installed, matching the original's
// assert.
func (c *SocketClient) SetDataCallback(cb DataCallback) {
	if c.dataCallback != nil {
		panic("iofd: data callback already set")
	}
	c.dataCallback = cb
}

func (c *SocketClient) callDataCallback(buf []byte, err error) {
	if c.IsClosed() {
		return
	}
	c.inCallback = true
	c.dataCallback(buf, err)
	c.inCallback = false
	if c.IsClosed() {
		c.dataCallback = nil
	}
}

func (c *SocketClient) onReady() {
	buf := make([]byte, 64*1024)
	for !c.IsClosed() {
		var dst DataBuffer
		res, err := c.fd.Read(&dst, buf)
		if err != nil {
			if c.dataCallback != nil {
				c.callDataCallback(nil, err)
			}
			c.Close()
			return
		}
		if res.N > 0 && c.dataCallback != nil {
			c.callDataCallback(dst.Bytes(), nil)
		}
		if res.EOF {
			if c.dataCallback != nil {
				c.callDataCallback(nil, nil)
			}
			c.Close()
			return
		}
		if res.N == 0 {
			// EAGAIN: drained for this readiness event.
			return
		}
	}
}

// Send queues data for write, flushing what the kernel will accept
// immediately.
func (c *SocketClient) Send(data []byte) error {
	return c.fd.Write(data)
}

// Flushed passes through to the underlying AsyncFD.
func (c *SocketClient) Flushed() async.Deferred[error] { return c.fd.Flushed() }

// Closed passes through to the underlying AsyncFD.
func (c *SocketClient) Closed() async.Deferred[async.Unit] { return c.fd.Closed() }

// IsClosed reports whether Close has run.
func (c *SocketClient) IsClosed() bool { return c.closed }

// Close closes the underlying fd. The data callback is dropped unless
// currently executing, in which case onReady/callDataCallback drops it
// once the callback returns -- matching the original's reentrancy guard.
func (c *SocketClient) Close() bool {
	if c.IsClosed() {
		return false
	}
	c.closed = true
	err := c.fd.Close()
	if !c.inCallback {
		c.dataCallback = nil
	}
	return err == nil
}

// FD exposes the underlying AsyncFD, e.g. for tests that want to drive
// readiness directly.
func (c *SocketClient) FD() *AsyncFD { return c.fd }

// ConnectionCallback handles one accepted connection, started as a task
// per the original's schedule_task(connection_callback, ...) dispatch.
type ConnectionCallback func(y *async.Yield, client *SocketClient, err error)

// SocketServer is a listening TCP socket that accepts connections and
// dispatches each to a ConnectionCallback, run as an independent task so a
// slow handler never blocks later accepts.
type SocketServer struct {
	sched      *async.Scheduler
	fd         *AsyncFD
	onConn     ConnectionCallback
	writeLimit *catrate.Limiter
}

// Listen binds to port (0 picks an ephemeral port) on all IPv6 addresses,
// dual-stack the way the original's AF_INET6 listener is, and dispatches
// each accepted connection to onConn.
func Listen(sched *async.Scheduler, port int, onConn ConnectionCallback, writeLimit *catrate.Limiter) (*SocketServer, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("iofd: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("iofd: setsockopt: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet6{Port: port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("iofd: bind to port %d: %w", port, err)
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("iofd: listen: %w", err)
	}
	afd, err := Of(sched, fd, true, writeLimit)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	s := &SocketServer{sched: sched, fd: afd, onConn: onConn, writeLimit: writeLimit}
	afd.SetReadyCallback(s.onReady)
	return s, nil
}

// Port returns the bound local port, resolving an ephemeral (port 0)
// listener's actual assignment.
func (s *SocketServer) Port() (int, error) {
	sa, err := unix.Getsockname(s.fd.FD())
	if err != nil {
		return 0, fmt.Errorf("iofd: getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet6:
		return a.Port, nil
	case *unix.SockaddrInet4:
		return a.Port, nil
	default:
		return 0, fmt.Errorf("iofd: unexpected sockaddr type %T", sa)
	}
}

func (s *SocketServer) onReady() {
	if s.onConn == nil {
		return
	}
	for {
		conn, ok, err := s.fd.Accept()
		if err != nil {
			async.Go(s.sched, func(y *async.Yield) async.Unit {
				s.onConn(y, nil, err)
				return async.Unit{}
			})
			return
		}
		if !ok {
			return
		}
		client := OfFD(conn)
		async.Go(s.sched, func(y *async.Yield) async.Unit {
			s.onConn(y, client, nil)
			return async.Unit{}
		})
	}
}

// Close stops accepting and closes the listening fd.
func (s *SocketServer) Close() bool {
	s.onConn = nil
	return s.fd.Close() == nil
}

// FD exposes the underlying AsyncFD.
func (s *SocketServer) FD() *AsyncFD { return s.fd }
