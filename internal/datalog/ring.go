// Package datalog provides a bounded in-memory record of simulation
// snapshots. The buffer evicts oldest entries first, so long-running
// sessions hold a sliding window rather than growing without bound.
package datalog

import (
	"sync"

	"github.com/san-kum/pendlab/internal/dynamo"
)

// DefaultCapacity bounds the number of retained snapshots when no
// explicit capacity is given.
const DefaultCapacity = 10000

// Ring is a fixed-capacity FIFO log of snapshots. It is safe for one
// writer and any number of readers.
type Ring struct {
	mu    sync.Mutex
	buf   []dynamo.Snapshot
	start int
	n     int
}

// NewRing creates a ring holding at most capacity snapshots. A
// non-positive capacity falls back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]dynamo.Snapshot, capacity)}
}

// Append records a snapshot, evicting the oldest entry when full.
func (r *Ring) Append(s dynamo.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// Len reports the number of retained snapshots.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Capacity reports the maximum number of retained snapshots.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// All returns the retained snapshots in chronological order. The
// returned slice is a copy and safe to hold across further appends.
func (r *Ring) All() []dynamo.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked(r.n)
}

// Tail returns up to n of the most recent snapshots in chronological
// order.
func (r *Ring) Tail(n int) []dynamo.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.n {
		n = r.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]dynamo.Snapshot, n)
	first := r.start + r.n - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(first+i)%len(r.buf)]
	}
	return out
}

// Clear discards all retained snapshots.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.n = 0
}

func (r *Ring) copyLocked(n int) []dynamo.Snapshot {
	if n == 0 {
		return nil
	}
	out := make([]dynamo.Snapshot, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
