package document

import (
	"sync"

	"emotext/internal/bus"
	"emotext/internal/domain"
)

// State is the single text buffer shared by typing, expression insertion and
// transcript insertion. Writers are serialized; the last writer decides the
// caret.
type State struct {
	mu      sync.Mutex
	content string
	caret   domain.Caret

	changes *bus.Hub[domain.Document]
}

// NewState returns an empty document.
func NewState() *State {
	return &State{changes: bus.NewHub[domain.Document]()}
}

// Snapshot returns the current content and caret.
func (s *State) Snapshot() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Document{Content: s.content, Caret: s.caret}
}

// SetContent replaces the content, clamping the caret into range.
func (s *State) SetContent(content string) {
	s.mu.Lock()
	s.content = content
	s.caret = s.caret.Clamp(Len(content))
	snapshot := domain.Document{Content: s.content, Caret: s.caret}
	s.mu.Unlock()

	s.changes.Publish(snapshot)
}

// SetCaret moves the caret. An out-of-range caret leaves the state untouched.
func (s *State) SetCaret(caret domain.Caret) error {
	s.mu.Lock()
	if !caret.Valid(Len(s.content)) {
		s.mu.Unlock()
		return ErrInvalidCaret
	}
	s.caret = caret
	snapshot := domain.Document{Content: s.content, Caret: s.caret}
	s.mu.Unlock()

	s.changes.Publish(snapshot)
	return nil
}

// Edit replaces content and caret together, as a textarea change event does.
func (s *State) Edit(content string, caret domain.Caret) {
	s.mu.Lock()
	s.content = content
	s.caret = caret.Clamp(Len(content))
	snapshot := domain.Document{Content: s.content, Caret: s.caret}
	s.mu.Unlock()

	s.changes.Publish(snapshot)
}

// Insert splices fragment at the caret start and moves the caret after it.
// On error nothing changes.
func (s *State) Insert(fragment string) (domain.Caret, error) {
	s.mu.Lock()
	content, caret, err := Insert(s.content, s.caret.Start, fragment)
	if err != nil {
		s.mu.Unlock()
		return domain.Caret{}, err
	}
	s.content = content
	s.caret = caret
	snapshot := domain.Document{Content: s.content, Caret: s.caret}
	s.mu.Unlock()

	s.changes.Publish(snapshot)
	return caret, nil
}

// Subscribe registers fn for every change.
func (s *State) Subscribe(fn func(domain.Document)) *bus.Subscription {
	return s.changes.Subscribe(fn)
}
