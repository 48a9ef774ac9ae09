package async

import "container/heap"

// TimerID is an opaque monotonic identifier for timer cancellation.
type TimerID uint64

type timerEntry struct {
	deadline int64 // UnixNano
	seq      uint64
	id       TimerID
	callback func()
	canceled bool
	index    int // heap index, maintained by container/heap
}

// timerHeap is a container/heap-backed min-heap keyed by deadline, with
// ties broken by insertion sequence -- matching "two timers with the same
// deadline fire in registration order."
type timerHeap struct {
	entries []*timerEntry
	byID    map[TimerID]*timerEntry
	nextSeq uint64
}

func newTimerHeap() *timerHeap {
	return &timerHeap{byID: make(map[TimerID]*timerEntry)}
}

func (h *timerHeap) Len() int { return len(h.entries) }

func (h *timerHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.seq < b.seq
}

func (h *timerHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *timerHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	e.index = -1
	return e
}

// schedule inserts a new timer and returns its id.
func (h *timerHeap) schedule(deadline int64, cb func()) TimerID {
	h.nextSeq++
	e := &timerEntry{deadline: deadline, seq: h.nextSeq, id: TimerID(h.nextSeq), callback: cb}
	h.byID[e.id] = e
	heap.Push(h, e)
	return e.id
}

// cancel marks the timer as canceled, idempotent on unknown or already
// fired/canceled ids.
func (h *timerHeap) cancel(id TimerID) {
	e, ok := h.byID[id]
	if !ok {
		return
	}
	if e.canceled {
		return
	}
	e.canceled = true
	delete(h.byID, id)
	if e.index >= 0 {
		heap.Remove(h, e.index)
	}
}

// peekDeadline returns the next pending (non-canceled) deadline and true,
// or false if the heap is empty.
func (h *timerHeap) peekDeadline() (int64, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[0].deadline, true
}

// popExpired removes and returns every timer whose deadline is <= now, in
// deadline order (ties broken by insertion order), via repeated Pop.
func (h *timerHeap) popExpired(now int64) []*timerEntry {
	var out []*timerEntry
	for len(h.entries) > 0 && h.entries[0].deadline <= now {
		e := heap.Pop(h).(*timerEntry)
		delete(h.byID, e.id)
		if !e.canceled {
			out = append(out, e)
		}
	}
	return out
}
