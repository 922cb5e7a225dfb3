package review

// Seen is the dedup set of record keys. It is not safe for concurrent use.
type Seen struct {
	keys map[Key]struct{}
}

// NewSeen returns an empty set.
func NewSeen() *Seen {
	return &Seen{keys: make(map[Key]struct{})}
}

// Contains reports whether key was inserted before.
func (s *Seen) Contains(key Key) bool {
	_, ok := s.keys[key]
	return ok
}

// Insert adds key to the set.
func (s *Seen) Insert(key Key) {
	s.keys[key] = struct{}{}
}

// SeedFrom inserts the key of every record, used when resuming a session.
func (s *Seen) SeedFrom(records []Record) {
	for _, r := range records {
		s.Insert(KeyFor(r))
	}
}

// Len returns the number of keys.
func (s *Seen) Len() int {
	return len(s.keys)
}
