package memory

import (
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/seed"
)

// NewDemoStore returns a store preloaded with the demo catalog and accounts.
func NewDemoStore() *Store {
	s := NewStore()
	for _, sk := range seed.Skills() {
		s.PutSkill(sk)
	}
	for _, u := range seed.Users() {
		s.PutUser(u)
	}
	return s
}
