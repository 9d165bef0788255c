package discovery

import "sync"

// Store holds the unique image records of one scan context in discovery
// order. Writers are serialized by the scheduler; the mutex only lets
// readers outside the scan loop take consistent snapshots.
type Store struct {
	mu      sync.RWMutex
	records []ImageRecord
	index   map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		index: make(map[string]struct{}),
	}
}

func (s *Store) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index[url]
	return ok
}

// Add appends rec unless a record with the same URL exists. It reports
// whether the record was added.
func (s *Store) Add(rec ImageRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[rec.URL]; ok {
		return false
	}
	s.index[rec.URL] = struct{}{}
	s.records = append(s.records, rec)
	return true
}

// All returns a copy of the records in discovery order.
func (s *Store) All() []ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ImageRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]struct{})
}
