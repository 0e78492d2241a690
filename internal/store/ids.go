package store

import (
	"github.com/google/uuid"
)

// IDGenerator produces run IDs. Implementations must be safe for
// concurrent use.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs, so IDs sort in
// the order runs were recorded.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SetIDGenerator replaces the generator used for runs recorded without an
// ID. A nil gen restores UUIDv7Generator.
func (s *Store) SetIDGenerator(gen IDGenerator) {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	s.ids = gen
}

func (s *Store) newID() string {
	if s.ids == nil {
		return UUIDv7Generator{}.Generate()
	}
	return s.ids.Generate()
}
