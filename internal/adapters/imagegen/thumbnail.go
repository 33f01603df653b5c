package imagegen

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"dpterminal/internal/domain/thumbnail"
	"dpterminal/pkg/errors"
)

// ThumbnailPathPrefix is where the HTTP layer serves stored thumbnails
const ThumbnailPathPrefix = "/thumbnails/"

// Thumbnailer downloads a generated image, scales it to fit a square box
// and stores it as PNG
type Thumbnailer struct {
	repo       thumbnail.Repository
	httpClient *http.Client
	size       int
	ttl        time.Duration
	maxBytes   int64
}

func NewThumbnailer(repo thumbnail.Repository, httpClient *http.Client, size int, ttl time.Duration, maxBytes int64) *Thumbnailer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Thumbnailer{
		repo:       repo,
		httpClient: httpClient,
		size:       size,
		ttl:        ttl,
		maxBytes:   maxBytes,
	}
}

// Store implements ThumbnailStore
func (t *Thumbnailer) Store(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "create image request")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "download image")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("download image: status %d", resp.StatusCode)
	}

	src, _, err := image.Decode(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return "", errors.Wrap(err, "decode image")
	}

	data, err := encodePNG(Resize(src, t.size))
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if err := t.repo.Save(ctx, &thumbnail.Thumbnail{ID: id, ContentType: "image/png", Data: data}, t.ttl); err != nil {
		return "", errors.Wrap(err, "save thumbnail")
	}
	return ThumbnailPathPrefix + id + ".png", nil
}

// Resize center-crops src to a square and scales it to box x box.
func Resize(src image.Image, box int) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, box, box))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}
