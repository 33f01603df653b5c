package memory

import (
	"context"
	"time"

	"dpterminal/internal/domain/thumbnail"
	"dpterminal/pkg/errors"
)

// ThumbnailRepository implements thumbnail.Repository in process memory
type ThumbnailRepository struct {
	store *ttlMap[thumbnail.Thumbnail]
}

func NewThumbnailRepository() *ThumbnailRepository {
	return &ThumbnailRepository{store: newTTLMap[thumbnail.Thumbnail]()}
}

func (r *ThumbnailRepository) Get(ctx context.Context, id string) (*thumbnail.Thumbnail, error) {
	t, ok := r.store.get(id)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "thumbnail not found: id=%s", id)
	}
	return &t, nil
}

func (r *ThumbnailRepository) Save(ctx context.Context, t *thumbnail.Thumbnail, ttl time.Duration) error {
	r.store.set(t.ID, *t, ttl)
	return nil
}
