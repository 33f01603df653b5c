package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"dpterminal/internal/domain/session"
	"dpterminal/pkg/errors"
)

// Tracker implements error tracking via Sentry
type Tracker struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// New initializes the Sentry SDK and returns a tracker bound to its hub
func New(dsn, environment, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init sentry")
	}

	return &Tracker{
		hub:          sentry.CurrentHub(),
		flushTimeout: 2 * time.Second,
	}, nil
}

// CaptureError sends an error to Sentry, tagging it with the session when present
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if sessionID := session.IDFromContext(ctx); sessionID != "" {
			scope.SetUser(sentry.User{ID: sessionID})
		}
	})

	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message to Sentry
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetLevel(convertLevel(level))
	})

	hub.CaptureMessage(message)
	return nil
}

// Flush waits for pending events
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := t.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if !t.hub.Flush(timeout) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
