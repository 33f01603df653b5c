package session

import (
	"context"
	"time"

	"dpterminal/internal/domain/personality"
	"dpterminal/internal/domain/session"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// Service owns the per-session personality selection
type Service struct {
	repo     session.Repository
	registry *personality.Registry
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a new session service
func NewService(repo session.Repository, registry *personality.Registry, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With("service", "session"),
	}
}

// ActivePersonality returns the selected personality key for the session.
// Missing sessions and storage failures yield the default key.
func (s *Service) ActivePersonality(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return personality.DefaultKey
	}

	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Errorw("Failed to load session",
				"session_id", sessionID,
				"error", err,
			)
		}
		return personality.DefaultKey
	}

	if !s.registry.Has(sess.PersonalityKey) {
		return personality.DefaultKey
	}
	return sess.PersonalityKey
}

// SelectPersonality stores key as the session's personality.
// Unknown keys are rejected with a validation error.
func (s *Service) SelectPersonality(ctx context.Context, sessionID, key string) error {
	if sessionID == "" {
		return errors.NewValidationError("session", "missing session", sessionID)
	}
	if key == "" {
		return errors.NewValidationError("personality", "Missing personality", key)
	}
	if !s.registry.Has(key) {
		return errors.NewValidationError("personality", "Invalid personality", key)
	}

	sess := &session.Session{
		ID:             sessionID,
		PersonalityKey: key,
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.repo.Save(ctx, sess, s.ttl); err != nil {
		s.log.Errorw("Failed to save session",
			"session_id", sessionID,
			"error", err,
		)
		return errors.Wrap(err, "save session")
	}

	s.log.Debugw("Personality selected",
		"session_id", sessionID,
		"personality", key,
	)
	return nil
}

// Personalities lists the selectable keys
func (s *Service) Personalities() []string {
	return s.registry.Keys()
}
