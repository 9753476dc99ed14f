// Package session holds the bearer token for the running process and mirrors
// it to durable storage.
//
// Access is split by role. The login flow gets a Writer, logout paths get a
// Terminator, and views get a Reader they can Subscribe through to react to
// sign-in and sign-out.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TokenKey is the storage key holding the raw token string
const TokenKey = "wisepal_token"

// Storage is durable key-value storage
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Reason says why the session changed
type Reason int

const (
	ReasonRehydrate Reason = iota
	ReasonLogin
	ReasonLogout
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonRehydrate:
		return "rehydrate"
	case ReasonLogin:
		return "login"
	case ReasonLogout:
		return "logout"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Change is published to subscribers on every set or clear
type Change struct {
	Token         string
	Authenticated bool
	Reason        Reason
}

// Reader gives read access to the session
type Reader interface {
	Token() (string, bool)
	Subscribe() (<-chan Change, func())
}

// Writer establishes a session
type Writer interface {
	SetToken(ctx context.Context, token string) error
}

// Terminator ends a session
type Terminator interface {
	ClearToken(ctx context.Context) error
	Expire(ctx context.Context) error
}

// Store is the process-wide session
type Store struct {
	storage Storage
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
	has   bool

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int

	rehydrateOnce sync.Once
	rehydrateErr  error
}

var (
	_ Reader     = (*Store)(nil)
	_ Writer     = (*Store)(nil)
	_ Terminator = (*Store)(nil)
)

// NewStore creates an empty, unauthenticated session backed by storage
func NewStore(storage Storage, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		storage: storage,
		logger:  logger,
		subs:    make(map[int]chan Change),
	}
}

// Rehydrate loads a persisted token. Only the first call reads storage;
// later calls return the first call's result.
func (s *Store) Rehydrate(ctx context.Context) error {
	s.rehydrateOnce.Do(func() {
		token, ok, err := s.storage.Get(ctx, TokenKey)
		if err != nil {
			s.rehydrateErr = fmt.Errorf("failed to rehydrate session: %w", err)
			s.logger.Warn("session rehydration failed", zap.Error(err))
			return
		}
		if !ok || token == "" {
			s.logger.Debug("no persisted session")
			return
		}

		s.mu.Lock()
		s.token, s.has = token, true
		s.mu.Unlock()

		s.logger.Info("session rehydrated")
		s.publish(Change{Token: token, Authenticated: true, Reason: ReasonRehydrate})
	})
	return s.rehydrateErr
}

// Token returns the current token, if any
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.has
}

// SetToken replaces the current token and persists it. The in-memory value
// changes even when persisting fails, so the running process stays signed in.
func (s *Store) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token, s.has = token, true
	s.mu.Unlock()

	s.publish(Change{Token: token, Authenticated: true, Reason: ReasonLogin})

	if err := s.storage.Put(ctx, TokenKey, token); err != nil {
		s.logger.Warn("failed to persist session token", zap.Error(err))
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	return nil
}

// ClearToken signs out
func (s *Store) ClearToken(ctx context.Context) error {
	return s.clear(ctx, ReasonLogout)
}

// Expire signs out because the server rejected the token
func (s *Store) Expire(ctx context.Context) error {
	return s.clear(ctx, ReasonExpired)
}

func (s *Store) clear(ctx context.Context, reason Reason) error {
	s.mu.Lock()
	s.token, s.has = "", false
	s.mu.Unlock()

	s.logger.Info("session cleared", zap.Stringer("reason", reason))
	s.publish(Change{Reason: reason})

	if err := s.storage.Delete(ctx, TokenKey); err != nil {
		s.logger.Warn("failed to remove persisted session token", zap.Error(err))
		return fmt.Errorf("failed to remove persisted session token: %w", err)
	}
	return nil
}

// Subscribe registers for session changes. Each subscriber holds at most one
// pending change; a newer change replaces an unread one. The returned cancel
// func unregisters and closes the channel.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) publish(change Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		// Drop an unread change so the latest one wins
		select {
		case <-ch:
		default:
		}
		ch <- change
	}
}
