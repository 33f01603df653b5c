package errors

import (
	"context"
)

// Tracker reports errors to an external service (Sentry or nothing)
type Tracker interface {
	// CaptureError sends an error with tags
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage sends a plain message at the given level
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// Flush waits for pending events
	Flush(ctx context.Context) error
}

// Level represents the severity level of a message
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}
