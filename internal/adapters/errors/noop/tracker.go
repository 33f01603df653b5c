package noop

import (
	"context"

	"dpterminal/pkg/errors"
)

// Tracker discards everything. Used when no Sentry DSN is configured.
type Tracker struct{}

func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

func (t *Tracker) Flush(ctx context.Context) error {
	return nil
}
