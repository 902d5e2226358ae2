// Package tokenstore holds the client's current access/refresh token pair and
// keeps it in durable storage so a session survives process restarts.
//
// The store is an explicit object handed to the dispatcher and to anything that
// needs auth state. Reads are served from memory; writes replace both tokens
// as one unit, so no caller observes (or persists) a half-written pair.
package tokenstore

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/makerhub/internal/model"
)

// Fixed keys of the durable document.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenType    = "token_type"
)

// ErrIncompletePair is returned by SetTokens when either token is empty.
var ErrIncompletePair = errors.New("tokenstore: access and refresh tokens must both be set")

// Store is the process-wide owner of the current TokenPair. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	pair    model.TokenPair
	backend Backend
	log     *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New constructs a Store and loads any pair already held by the backend.
// A backend holding only one of the two tokens is treated as empty and purged.
func New(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &Store{backend: backend, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}

	vals, err := backend.Load()
	if err != nil {
		return nil, err
	}
	access, refresh := vals[KeyAccessToken], vals[KeyRefreshToken]
	switch {
	case access != "" && refresh != "":
		s.pair = model.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    vals[KeyTokenType],
		}
	case access != "" || refresh != "":
		s.log.Warn("discarding partial token state")
		if err := backend.Delete(); err != nil {
			s.log.Warn("purge partial token state", zap.Error(err))
		}
	}
	return s, nil
}

// SetTokens replaces the held pair in memory and in durable storage.
// The in-memory pair is updated even if persisting fails; the persistence
// error is returned so callers can report it.
func (s *Store) SetTokens(pair model.TokenPair) error {
	if !pair.Complete() {
		return ErrIncompletePair
	}
	if pair.TokenType == "" {
		pair.TokenType = "bearer"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return s.backend.Save(Values{
		KeyAccessToken:  pair.AccessToken,
		KeyRefreshToken: pair.RefreshToken,
		KeyTokenType:    pair.TokenType,
	})
}

// AccessToken returns the current access token or "" if none is held.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken
}

// RefreshToken returns the current refresh token or "" if none is held.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken
}

// Pair returns a copy of the held pair and whether one is held.
func (s *Store) Pair() (model.TokenPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.pair.Complete()
}

// ClearTokens drops both tokens from memory and durable storage. Idempotent.
func (s *Store) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = model.TokenPair{}
	return s.backend.Delete()
}

// IsAuthenticated reports whether an access token is held.
// It does not check expiry or signature; the server decides validity.
func (s *Store) IsAuthenticated() bool {
	return s.AccessToken() != ""
}
