// Package session keeps the per-caller level state of the guard game.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/ashureev/guard-labs/internal/domain"
)

var (
	// ErrNotFound is returned when no session exists for an identity.
	ErrNotFound = errors.New("no active session")
	// ErrUnknownLevel is returned for level numbers outside [1, domain.LevelCount].
	ErrUnknownLevel = errors.New("unknown level")
)

// Generator produces the levels of a new session.
type Generator interface {
	Generate(difficulty int) []domain.Level
}

// entry holds one identity's session behind its own lock, so operations on
// one identity never block another.
type entry struct {
	mu   sync.RWMutex
	sess domain.Session
}

// Store maps caller identities to their sessions.
//
// Sessions live for the process lifetime. Concurrent Pins on the same level
// of the same identity are serialized by the entry lock but not ordered:
// the last one to acquire the lock decides the success flag.
type Store struct {
	gen      Generator
	now      func() time.Time
	sessions sync.Map // identity -> *entry
}

// NewStore creates an empty store that builds sessions with gen.
func NewStore(gen Generator) *Store {
	return &Store{gen: gen, now: time.Now}
}

// Start replaces any session for identity with freshly generated levels and
// returns the sticky-note level's code as a hint. It also reports how many
// levels the replaced session had solved, or -1 if there was none.
func (s *Store) Start(identity string, difficulty int) (hint string, replacedSolved int) {
	e := &entry{sess: domain.Session{
		Identity:   identity,
		Difficulty: difficulty,
		StartedAt:  s.now(),
		Levels:     s.gen.Generate(difficulty),
	}}
	replacedSolved = -1
	if prev, loaded := s.sessions.Swap(identity, e); loaded {
		old := prev.(*entry)
		old.mu.RLock()
		replacedSolved = old.sess.Solved()
		old.mu.RUnlock()
	}
	return e.sess.Levels[domain.StickyNoteLevel-1].Code, replacedSolved
}

func (s *Store) lookup(identity string) (*entry, error) {
	v, ok := s.sessions.Load(identity)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*entry), nil
}

// Pin records a guess for level n and reports whether it matched.
// The success flag is overwritten on every call, so a wrong guess after a
// correct one clears it.
func (s *Store) Pin(identity string, n int, guess string) (bool, error) {
	e, err := s.lookup(identity)
	if err != nil {
		return false, err
	}
	if !domain.ValidLevel(n) {
		return false, ErrUnknownLevel
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Pin(n, guess), nil
}

// Level returns a copy of level n.
func (s *Store) Level(identity string, n int) (domain.Level, error) {
	e, err := s.lookup(identity)
	if err != nil {
		return domain.Level{}, err
	}
	if !domain.ValidLevel(n) {
		return domain.Level{}, ErrUnknownLevel
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sess.Levels[n-1], nil
}

// Chat returns the prompt and code of level n without mutating the session.
func (s *Store) Chat(identity string, n int) (prompt, code string, err error) {
	lvl, err := s.Level(identity, n)
	if err != nil {
		return "", "", err
	}
	return lvl.Prompt, lvl.Code, nil
}

// PeekCodes returns every code of the session in level order.
func (s *Store) PeekCodes(identity string) ([]string, error) {
	e, err := s.lookup(identity)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sess.Codes(), nil
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
