package memory

import (
	"context"
	"time"

	"dpterminal/internal/domain/session"
	"dpterminal/pkg/errors"
)

// SessionRepository implements session.Repository in process memory.
// Used when REDIS_HOST is not configured.
type SessionRepository struct {
	store *ttlMap[session.Session]
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{store: newTTLMap[session.Session]()}
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	s, ok := r.store.get(id)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "session not found: id=%s", id)
	}
	return &s, nil
}

func (r *SessionRepository) Save(ctx context.Context, s *session.Session, ttl time.Duration) error {
	r.store.set(s.ID, *s, ttl)
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.store.delete(id)
	return nil
}
