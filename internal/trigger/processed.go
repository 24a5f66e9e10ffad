package trigger

import (
	"sync"

	"tunevision/internal/matcher"
)

// ProcessedSet records pairs already dispatched by this loop instance.
type ProcessedSet struct {
	mu   sync.Mutex
	seen map[matcher.Key]struct{}
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{seen: make(map[matcher.Key]struct{})}
}

// Add inserts key and reports whether it was new.
func (s *ProcessedSet) Add(key matcher.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether key was dispatched.
func (s *ProcessedSet) Contains(key matcher.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// Len returns the number of dispatched pairs.
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
