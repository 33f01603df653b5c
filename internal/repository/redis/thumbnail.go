package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dpterminal/internal/domain/thumbnail"
	"dpterminal/pkg/errors"
)

// ThumbnailRepository keeps thumbnail bytes in a Redis hash per image
type ThumbnailRepository struct {
	client *redis.Client
}

func NewThumbnailRepository(client *redis.Client) *ThumbnailRepository {
	return &ThumbnailRepository{client: client}
}

// Get retrieves a thumbnail by id
func (r *ThumbnailRepository) Get(ctx context.Context, id string) (*thumbnail.Thumbnail, error) {
	fields, err := r.client.HGetAll(ctx, thumbnailKey(id)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get thumbnail from redis: id=%s", id)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "thumbnail not found: id=%s", id)
	}

	return &thumbnail.Thumbnail{
		ID:          id,
		ContentType: fields["content_type"],
		Data:        []byte(data),
	}, nil
}

// Save stores a thumbnail with TTL
func (r *ThumbnailRepository) Save(ctx context.Context, t *thumbnail.Thumbnail, ttl time.Duration) error {
	key := thumbnailKey(t.ID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "content_type", t.ContentType, "data", t.Data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save thumbnail to redis: id=%s", t.ID)
	}
	return nil
}

func thumbnailKey(id string) string {
	return "dp:thumbnail:" + id
}
