package thumbnail

import (
	"context"
	"time"
)

// Thumbnail is a re-hosted, downscaled copy of a generated image
type Thumbnail struct {
	ID          string
	ContentType string
	Data        []byte
}

// Repository stores thumbnails for a limited time
type Repository interface {
	// Get returns the thumbnail or an error wrapping errors.ErrNotFound
	Get(ctx context.Context, id string) (*Thumbnail, error)

	// Save stores a thumbnail with TTL
	Save(ctx context.Context, t *Thumbnail, ttl time.Duration) error
}
