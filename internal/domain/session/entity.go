package session

import (
	"context"
	"time"
)

// Session holds the per-visitor state of the chat terminal
type Session struct {
	ID             string    `json:"id"`
	PersonalityKey string    `json:"personality_key"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ctxKey struct{}

// WithID attaches the session id to ctx for logging and error tracking
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the session id attached by WithID, or ""
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
