package sync

import (
	"sort"
	"sync"
)

// ErrorSet remembers the most recent failed outcome per local record so the
// UI can badge records after a background sync. A later success for the same
// record supersedes the remembered failure.
type ErrorSet struct {
	mu   sync.Mutex
	byID map[string]Outcome
}

func NewErrorSet() *ErrorSet {
	return &ErrorSet{byID: make(map[string]Outcome)}
}

// Record stores a failed outcome, or clears any remembered failure when the
// outcome is a success for the same record.
func (s *ErrorSet) Record(o Outcome) {
	if o.LocalID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Failed() {
		s.byID[o.LocalID] = o
	} else {
		delete(s.byID, o.LocalID)
	}
}

// Acknowledge dismisses the remembered failure for one record.
func (s *ErrorSet) Acknowledge(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, localID)
}

// Get returns the remembered failure for a record, if any.
func (s *ErrorSet) Get(localID string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[localID]
	return o, ok
}

// All returns the remembered failures ordered by local id.
func (s *ErrorSet) All() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, 0, len(s.byID))
	for _, o := range s.byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalID < out[j].LocalID })
	return out
}
