package async

import "runtime"

// getGoroutineID returns the current goroutine's id by parsing the header
// line of runtime.Stack output. It is used to bind a Scheduler to its
// creating goroutine and assert every subsequent access happens there.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
