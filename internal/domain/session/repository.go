package session

import (
	"context"
	"time"
)

// Repository defines interface for session storage
type Repository interface {
	// Get returns the session or an error wrapping errors.ErrNotFound
	Get(ctx context.Context, id string) (*Session, error)

	// Save stores a session with TTL
	Save(ctx context.Context, s *Session, ttl time.Duration) error

	// Delete removes a session
	Delete(ctx context.Context, id string) error
}
