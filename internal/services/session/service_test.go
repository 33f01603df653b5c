package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/internal/domain/personality"
	"dpterminal/internal/domain/session"
	"dpterminal/internal/repository/memory"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

type failingRepo struct{}

func (failingRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) Save(ctx context.Context, s *session.Session, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingRepo) Delete(ctx context.Context, id string) error { return nil }

func newRegistry(t *testing.T) *personality.Registry {
	t.Helper()
	reg, err := personality.LoadEmbedded("WALLET")
	require.NoError(t, err)
	return reg
}

func TestSelectAndResolvePersonality(t *testing.T) {
	svc := NewService(memory.NewSessionRepository(), newRegistry(t), time.Hour, logger.Nop())
	ctx := context.Background()

	assert.Equal(t, personality.DefaultKey, svc.ActivePersonality(ctx, "s1"))

	require.NoError(t, svc.SelectPersonality(ctx, "s1", "pirate"))
	assert.Equal(t, "pirate", svc.ActivePersonality(ctx, "s1"))
	assert.Equal(t, personality.DefaultKey, svc.ActivePersonality(ctx, "s2"))
}

func TestSelectPersonalityValidation(t *testing.T) {
	svc := NewService(memory.NewSessionRepository(), newRegistry(t), time.Hour, logger.Nop())
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		message string
	}{
		{name: "missing", key: "", message: "Missing personality"},
		{name: "unknown", key: "ninja", message: "Invalid personality"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SelectPersonality(ctx, "s1", tt.key)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))

			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.message, verr.Message)
		})
	}

	assert.Equal(t, personality.DefaultKey, svc.ActivePersonality(ctx, "s1"))
}

func TestStorageFailureFallsBackToDefault(t *testing.T) {
	svc := NewService(failingRepo{}, newRegistry(t), time.Hour, logger.Nop())
	ctx := context.Background()

	assert.Equal(t, personality.DefaultKey, svc.ActivePersonality(ctx, "s1"))

	err := svc.SelectPersonality(ctx, "s1", "robot")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrInvalidInput))
}
