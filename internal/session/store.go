package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/sampler"
	"golang.org/x/text/language"
)

// Store keeps sessions in memory keyed by id. Nothing survives a restart.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	catalogue  *catalogue.Catalogue
	newSampler func() *sampler.Sampler
	count      int
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithSamplerFactory sets how each new session gets its sampler.
func WithSamplerFactory(f func() *sampler.Sampler) StoreOption {
	return func(s *Store) { s.newSampler = f }
}

// WithInitialElements sets how many elements a new session is seeded with.
// Zero leaves new sessions empty.
func WithInitialElements(n int) StoreOption {
	return func(s *Store) { s.count = n }
}

// NewStore creates an empty store over cat.
func NewStore(cat *catalogue.Catalogue, opts ...StoreOption) *Store {
	if cat == nil {
		cat = &catalogue.Catalogue{}
	}
	s := &Store{
		sessions:   make(map[string]*Session),
		catalogue:  cat,
		newSampler: sampler.NewRandom,
		count:      DefaultElementCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalogue returns the catalogue shared by every session.
func (s *Store) Catalogue() *catalogue.Catalogue { return s.catalogue }

// Create starts a session in lang with its initial elements drawn.
func (s *Store) Create(lang language.Tag) *Session {
	sess := New(s.catalogue, s.newSampler(), lang)
	if s.count > 0 {
		sess.Resample(s.count)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete removes the session with id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops sessions idle since before cutoff and returns how many were removed.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastAccess().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
