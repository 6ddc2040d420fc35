package variation

import "time"

// DefaultSyncErrorCapacity is the number of sync errors a family retains
const DefaultSyncErrorCapacity = 10

// SyncError is one recorded publish or sync failure.
type SyncError struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// ErrorRing is a fixed-capacity ring of the most recent errors. When full,
// pushing evicts the oldest entry. It is not safe for concurrent use; callers
// serialize access per family.
type ErrorRing struct {
	buf   []SyncError
	start int
	size  int
}

// NewErrorRing creates a ring holding at most capacity entries
func NewErrorRing(capacity int) *ErrorRing {
	if capacity <= 0 {
		capacity = DefaultSyncErrorCapacity
	}
	return &ErrorRing{buf: make([]SyncError, capacity)}
}

// Push appends e, evicting the oldest entry when the ring is full
func (r *ErrorRing) Push(e SyncError) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = e
		r.size++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// Entries returns the retained errors, oldest first
func (r *ErrorRing) Entries() []SyncError {
	out := make([]SyncError, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns the most recent error
func (r *ErrorRing) Last() (SyncError, bool) {
	if r.size == 0 {
		return SyncError{}, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// Len returns the number of retained errors
func (r *ErrorRing) Len() int { return r.size }

// Cap returns the ring capacity
func (r *ErrorRing) Cap() int { return len(r.buf) }
