// Package collect provides the simple selection and list builders that feed
// the listing payload: the amenity set and the nearby-place list.
package collect

// AmenitySet is an insertion-ordered set of amenity ids.
type AmenitySet struct {
	ids   []string
	index map[string]int
}

// NewAmenitySet returns a set holding ids, duplicates collapsed.
func NewAmenitySet(ids ...string) AmenitySet {
	var s AmenitySet
	s.Set(ids)
	return s
}

// Toggle adds id when absent and removes it when present. It reports
// whether id is selected afterwards.
func (s *AmenitySet) Toggle(id string) bool {
	if s.Has(id) {
		s.remove(id)
		return false
	}
	s.add(id)
	return true
}

// Has reports whether id is selected.
func (s *AmenitySet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of selected amenities.
func (s *AmenitySet) Len() int {
	return len(s.ids)
}

// IDs returns the selection in the order it was made.
func (s *AmenitySet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Set replaces the whole selection.
func (s *AmenitySet) Set(ids []string) {
	s.ids = nil
	s.index = make(map[string]int, len(ids))
	for _, id := range ids {
		if !s.Has(id) {
			s.add(id)
		}
	}
}

func (s *AmenitySet) add(id string) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

func (s *AmenitySet) remove(id string) {
	i := s.index[id]
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.ids); j++ {
		s.index[s.ids[j]] = j
	}
}
