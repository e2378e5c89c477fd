package history

import (
	"sync"
	"time"

	"github.com/aretw0/memovault/pkg/core"
)

// DefaultQuietWindow is how long edits must pause before a burst is
// recorded.
const DefaultQuietWindow = time.Second

// Recorder coalesces a burst of edits into one history entry. The state
// captured is the one before the first edit of the burst; it is recorded
// once no edit has arrived for the quiet window.
type Recorder struct {
	stack *Stack
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *core.HistoryState
	gen     uint64
}

// NewRecorder creates a Recorder pushing onto stack.
func NewRecorder(stack *Stack, delay time.Duration) *Recorder {
	if delay <= 0 {
		delay = DefaultQuietWindow
	}
	return &Recorder{stack: stack, delay: delay}
}

// Touch announces an edit about to replace before. Touches made while the
// stack is applying an undo or redo are ignored.
func (r *Recorder) Touch(before core.HistoryState) {
	if r.stack.Applying() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		s := before
		r.pending = &s
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timer = time.AfterFunc(r.delay, func() { r.fire(gen) })
}

// Flush records a pending burst right away. It reports whether an entry
// was pushed.
func (r *Recorder) Flush() bool {
	r.mu.Lock()
	state := r.takeLocked()
	r.mu.Unlock()

	if state == nil {
		return false
	}
	return r.stack.Record(*state)
}

// Pending reports whether a burst is waiting for its quiet window.
func (r *Recorder) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Stop discards any pending burst.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.takeLocked()
}

func (r *Recorder) fire(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	state := r.takeLocked()
	r.mu.Unlock()

	if state != nil {
		r.stack.Record(*state)
	}
}

func (r *Recorder) takeLocked() *core.HistoryState {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
	state := r.pending
	r.pending = nil
	return state
}
