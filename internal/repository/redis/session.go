package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"dpterminal/internal/domain/session"
	"dpterminal/pkg/errors"
)

// SessionRepository implements session.Repository using Redis
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{
		client: client,
	}
}

// Get retrieves a session by id
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "session not found: id=%s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get session from redis: id=%s", id)
	}

	var s session.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session: id=%s", id)
	}

	return &s, nil
}

// Save stores a session with TTL
func (r *SessionRepository) Save(ctx context.Context, s *session.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal session: id=%s", s.ID)
	}

	if err := r.client.Set(ctx, sessionKey(s.ID), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to save session to redis: id=%s", s.ID)
	}

	return nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete session from redis: id=%s", id)
	}
	return nil
}

func sessionKey(id string) string {
	return "dp:session:" + id
}
