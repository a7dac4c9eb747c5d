package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 30 * time.Minute

// StoreConfig configures a Store.
type StoreConfig struct {
	Engine *Engine

	// TTL is the idle time after which a session is evicted (default: 30m).
	TTL time.Duration

	// SweepInterval is how often Run evicts idle sessions (default: TTL/2).
	SweepInterval time.Duration

	Logger zerolog.Logger
}

// Store keeps live sessions by ID.
type Store struct {
	engine   *Engine
	ttl      time.Duration
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates a session store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.TTL / 2
	}
	return &Store{
		engine:   cfg.Engine,
		ttl:      cfg.TTL,
		interval: cfg.SweepInterval,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new session.
func (s *Store) Create() *Session {
	sess := s.engine.NewSession(uuid.NewString())

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	s.logger.Debug().Str("session_id", sess.ID()).Msg("session created")
	return sess
}

// Get returns a live session.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete closes and removes a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many were evicted.
func (s *Store) Sweep() int {
	cutoff := s.engine.now().Add(-s.ttl)

	var expired []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	if len(expired) > 0 {
		s.logger.Info().Int("evicted", len(expired)).Msg("idle sessions evicted")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is cancelled, then closes all sessions.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// CloseAll closes and removes every session.
func (s *Store) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
