// Package iofd provides non-blocking file-descriptor wrappers (AsyncFD,
// DataBuffer) and socket collaborators (SocketClient, SocketServer) that
// register with an async.Scheduler. These are external collaborators:
// the core scheduler and future algebra specify only the registration
// contract they rely on.
package iofd

// DataBuffer is an append-only byte buffer with a read cursor, used as
// AsyncFD's outgoing-write queue. Bytes already consumed up to the
// cursor are compacted away lazily rather than on every read, so a long
// sequence of small writes against a slow peer doesn't cost an O(n)
// shift per write.
type DataBuffer struct {
	buf    []byte
	cursor int
}

// Len returns the number of unread bytes remaining in the buffer.
func (d *DataBuffer) Len() int { return len(d.buf) - d.cursor }

// Empty reports whether every byte written has been consumed.
func (d *DataBuffer) Empty() bool { return d.Len() == 0 }

// Write appends p to the buffer.
func (d *DataBuffer) Write(p []byte) {
	d.buf = append(d.buf, p...)
}

// Bytes returns the unread portion of the buffer, valid until the next
// Write or Consume call.
func (d *DataBuffer) Bytes() []byte {
	return d.buf[d.cursor:]
}

// Consume advances the read cursor by n bytes, compacting the
// underlying slice once more than half of it has been consumed.
func (d *DataBuffer) Consume(n int) {
	d.cursor += n
	if d.cursor > 0 && d.cursor*2 > len(d.buf) {
		d.buf = append(d.buf[:0], d.buf[d.cursor:]...)
		d.cursor = 0
	}
}
