package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agent-matrix/matrixhub-admin/pkg/shared/kvs"
	"github.com/google/uuid"
)

const sessionKeyPrefix = "session:"

// ErrSessionNotFound is returned when a session is missing or expired
var ErrSessionNotFound = errors.New("session not found")

// User is the identity shown to the console UI
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is a logged-in console user
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValid checks if the session is still valid
func (s *Session) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// SessionStore keeps sessions as JSON in a kvs.Store, with the store TTL
// matching the session lifetime.
type SessionStore struct {
	kvs kvs.Store
	ttl time.Duration
	now func() time.Time
}

// NewSessionStore creates a store whose sessions live for ttl.
func NewSessionStore(store kvs.Store, ttl time.Duration) *SessionStore {
	return &SessionStore{kvs: store, ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of new sessions
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create starts a session for user.
func (s *SessionStore) Create(ctx context.Context, user User) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: failed to marshal: %w", err)
	}
	if err := s.kvs.Set(ctx, sessionKeyPrefix+sess.ID, data, s.ttl); err != nil {
		return nil, fmt.Errorf("session: failed to store: %w", err)
	}
	return sess, nil
}

// Get returns a live session or ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	data, err := s.kvs.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		if errors.Is(err, kvs.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("session: failed to load: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	if !sess.IsValid(s.now()) {
		_ = s.kvs.Delete(ctx, sessionKeyPrefix+id)
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.kvs.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return fmt.Errorf("session: failed to delete: %w", err)
	}
	return nil
}

// Count returns the number of live sessions.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	return s.kvs.Count(ctx, sessionKeyPrefix)
}
