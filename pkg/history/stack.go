// Package history implements linear undo/redo over a note's title and
// content. Attachments are not covered.
package history

import (
	"sync"

	"github.com/aretw0/memovault/pkg/core"
)

// DefaultCapacity is the number of undo entries kept before the oldest is
// evicted.
const DefaultCapacity = 50

// Stack is a bounded undo stack paired with a redo stack.
type Stack struct {
	mu       sync.Mutex
	capacity int
	undo     []core.HistoryState
	redo     []core.HistoryState
	applying bool
}

// NewStack creates a Stack. A non-positive capacity selects DefaultCapacity.
func NewStack(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{capacity: capacity}
}

// Record pushes a state and invalidates redo. It is a no-op while an undo
// or redo is being applied, and when state equals the latest entry.
func (s *Stack) Record(state core.HistoryState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applying {
		return false
	}
	if n := len(s.undo); n > 0 && sameText(s.undo[n-1], state) {
		return false
	}

	s.undo = append(s.undo, state)
	if over := len(s.undo) - s.capacity; over > 0 {
		s.undo = append(s.undo[:0:0], s.undo[over:]...)
	}
	s.redo = nil
	return true
}

// Undo pops the most recent entry, pushing current onto the redo stack.
// ok is false when there is nothing to undo.
func (s *Stack) Undo(current core.HistoryState) (core.HistoryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return core.HistoryState{}, false
	}
	prev := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, current)
	return prev, true
}

// Redo mirrors Undo.
func (s *Stack) Redo(current core.HistoryState) (core.HistoryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redo) == 0 {
		return core.HistoryState{}, false
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, current)
	if over := len(s.undo) - s.capacity; over > 0 {
		s.undo = append(s.undo[:0:0], s.undo[over:]...)
	}
	return next, true
}

// Apply runs fn with recording suspended, so that edits produced by
// applying an undo or redo do not land on the stack.
func (s *Stack) Apply(fn func()) {
	s.mu.Lock()
	s.applying = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.applying = false
		s.mu.Unlock()
	}()
	fn()
}

// Applying reports whether an undo or redo is in progress.
func (s *Stack) Applying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applying
}

// Len returns the sizes of the undo and redo stacks.
func (s *Stack) Len() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo), len(s.redo)
}

// Reset drops both stacks.
func (s *Stack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = nil
	s.redo = nil
}

func sameText(a, b core.HistoryState) bool {
	return a.NoteID == b.NoteID && a.Title == b.Title && a.Content == b.Content
}
