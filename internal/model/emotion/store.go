package emotion

// Store exposes read-only access to the emotion lookup table.
type Store interface {
	Labels() []string
	Lookup(label string) (Entry, bool)
}

// MemoryStore implements Store with a map keyed by the exact emotion label.
type MemoryStore struct {
	labels []string
	items  map[string]Entry
}

// NewMemoryStore indexes entries by label. When a label repeats, the first
// entry is kept and the later ones are ignored.
func NewMemoryStore(entries []Entry) *MemoryStore {
	s := &MemoryStore{
		labels: make([]string, 0, len(entries)),
		items:  make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if _, exists := s.items[e.Emotion]; exists {
			continue
		}
		s.items[e.Emotion] = e
		s.labels = append(s.labels, e.Emotion)
	}
	return s
}

// Labels returns the labels in table order.
func (s *MemoryStore) Labels() []string {
	return append([]string(nil), s.labels...)
}

// Lookup is an exact, case-sensitive match.
func (s *MemoryStore) Lookup(label string) (Entry, bool) {
	e, ok := s.items[label]
	return e, ok
}

// Len reports how many distinct labels are loaded.
func (s *MemoryStore) Len() int {
	return len(s.items)
}
