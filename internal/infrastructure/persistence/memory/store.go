// Package memory implements the progression store in process memory.
// It backs the "memory" storage mode and the application tests.
//
// A unit of work runs against a private copy of the state and swaps it in on
// success, so a failed or panicking unit leaves no trace. Writers are serialised
// by a single lock, which also gives the per-user lock its meaning.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

type pairKey struct {
	userID  string
	skillID string
}

type state struct {
	records map[string]*progression.Record
	byPair  map[pairKey]string
	users   map[string]*user.User
	skills  map[string]*catalog.Skill
}

func newState() *state {
	return &state{
		records: make(map[string]*progression.Record),
		byPair:  make(map[pairKey]string),
		users:   make(map[string]*user.User),
		skills:  make(map[string]*catalog.Skill),
	}
}

// clone copies records and users. Skills are read-only and shared.
func (s *state) clone() *state {
	c := &state{
		records: make(map[string]*progression.Record, len(s.records)),
		byPair:  make(map[pairKey]string, len(s.byPair)),
		users:   make(map[string]*user.User, len(s.users)),
		skills:  s.skills,
	}
	for id, r := range s.records {
		c.records[id] = r.Clone()
	}
	for k, v := range s.byPair {
		c.byPair[k] = v
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is an in-memory progression.Store.
type Store struct {
	mu      sync.RWMutex // guards st
	writeMu sync.Mutex   // serialises units of work
	st      *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// PutSkill adds or replaces a catalog entry. It waits for any running unit
// of work, whose snapshot would otherwise overwrite the change.
func (s *Store) PutSkill(skill catalog.Skill) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	// skills are shared between snapshots, so replace the map instead of mutating it
	skills := make(map[string]*catalog.Skill, len(s.st.skills)+1)
	for k, v := range s.st.skills {
		skills[k] = v
	}
	skills[skill.ID] = &skill
	s.st.skills = skills
}

// PutUser adds or replaces a user. Like PutSkill it is serialised with units
// of work.
func (s *Store) PutUser(u user.User) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = &u
}

// Records returns a repository that reads and writes committed state directly.
func (s *Store) Records() progression.RecordRepository {
	return &recordRepo{acc: storeAccessor{s}}
}

// Users returns the user directory over committed state.
func (s *Store) Users() user.Directory {
	return &userDirectory{acc: storeAccessor{s}}
}

// Catalog returns the skill catalog.
func (s *Store) Catalog() catalog.Catalog {
	return &skillCatalog{acc: storeAccessor{s}}
}

// Do implements progression.UnitOfWork.
// Repositories returned by Records and Users must not be used inside fn.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx progression.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	// a panic in fn unwinds past the swap below, discarding the snapshot
	tx := &memTx{st: snapshot}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("unit of work cancelled: %w", err)
	}

	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
	return nil
}

// Snapshot returns copies of all records, for tests and diagnostics.
func (s *Store) Snapshot() []*progression.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*progression.Record, 0, len(s.st.records))
	for _, r := range s.st.records {
		out = append(out, r.Clone())
	}
	return out
}

var _ progression.Store = (*Store)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

// accessor hides whether a repository works on committed state (locked) or on
// a unit-of-work snapshot (owned by a single goroutine).
type accessor interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

type storeAccessor struct{ s *Store }

func (a storeAccessor) read(fn func(st *state) error) error {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return fn(a.s.st)
}

func (a storeAccessor) write(fn func(st *state) error) error {
	a.s.writeMu.Lock()
	defer a.s.writeMu.Unlock()
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return fn(a.s.st)
}

type txAccessor struct{ st *state }

func (a txAccessor) read(fn func(st *state) error) error  { return fn(a.st) }
func (a txAccessor) write(fn func(st *state) error) error { return fn(a.st) }

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

type memTx struct {
	st *state
}

func (t *memTx) Records() progression.RecordRepository {
	return &recordRepo{acc: txAccessor{t.st}}
}

func (t *memTx) Users() user.Directory {
	return &userDirectory{acc: txAccessor{t.st}}
}

// LockUser only checks existence: the unit of work already holds the writer lock.
func (t *memTx) LockUser(_ context.Context, userID string) error {
	if _, ok := t.st.users[userID]; !ok {
		return shared.ErrUserNotFound
	}
	return nil
}
