// Package session persists the identity behind each session so it survives
// process restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/domain"
)

// StorageKey prefixes every persisted identity record.
const StorageKey = "secureshare.identity"

// ErrNoRecord is returned by a Backend when nothing is stored under a key.
var ErrNoRecord = errors.New("session: no record")

// Backend is durable key/value storage for serialized identities.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Store owns session state. Persist and Clear are the only mutators.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// NewStore wraps backend.
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// Key returns the storage key for a session id.
func Key(sessionID string) string {
	return StorageKey + ":" + sessionID
}

// Restore reads the stored identity for sessionID. A missing record yields
// an anonymous, non-loading session. An unreadable record is discarded and
// treated as missing.
func (s *Store) Restore(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.AnonymousSession(), nil
	}
	raw, err := s.backend.Load(ctx, Key(sessionID))
	if errors.Is(err, ErrNoRecord) {
		return domain.AnonymousSession(), nil
	}
	if err != nil {
		return domain.AnonymousSession(), fmt.Errorf("restore session: %w", err)
	}

	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil || identity.ID == "" {
		s.logger.Warn("discarding unreadable session record", zap.String("session_id", sessionID))
		if delErr := s.backend.Delete(ctx, Key(sessionID)); delErr != nil {
			return domain.AnonymousSession(), fmt.Errorf("discard session: %w", delErr)
		}
		return domain.AnonymousSession(), nil
	}
	return domain.AuthenticatedSession(sessionID, identity), nil
}

// Persist writes identity under sessionID, replacing any previous record.
func (s *Store) Persist(ctx context.Context, sessionID string, identity domain.Identity) error {
	if sessionID == "" {
		return errors.New("persist session: empty session id")
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := s.backend.Save(ctx, Key(sessionID), raw); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear removes the record for sessionID. Clearing an absent session succeeds.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.backend.Delete(ctx, Key(sessionID)); err != nil && !errors.Is(err, ErrNoRecord) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
