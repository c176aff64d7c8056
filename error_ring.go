package refract

import "sync"

// errorRing retains the most recent errors up to a fixed capacity.
// A nil ring is valid and retains nothing.
type errorRing struct {
	mu    sync.Mutex
	cap   int
	buf   []error
	start int
}

// newErrorRing creates a ring retaining up to capacity errors.
// A capacity of zero or less disables retention and returns nil.
func newErrorRing(capacity int) *errorRing {
	if capacity <= 0 {
		return nil
	}
	return &errorRing{cap: capacity}
}

// record appends an error, evicting the oldest when full.
func (r *errorRing) record(err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) < r.cap {
		r.buf = append(r.buf, err)
		return
	}
	r.buf[r.start] = err
	r.start = (r.start + 1) % r.cap
}

// reset discards all retained errors.
func (r *errorRing) reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = nil
	r.start = 0
}

// list returns the retained errors, oldest first.
func (r *errorRing) list() []error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == 0 {
		return nil
	}
	out := make([]error, 0, len(r.buf))
	for i := 0; i < len(r.buf); i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
