package imagegen

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"dpterminal/internal/adapters/ratelimit"
	"dpterminal/internal/metrics"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

var (
	// ErrContentPolicy means the upstream refused the prompt
	ErrContentPolicy = errors.Wrap(errors.ErrContentPolicy, "image prompt rejected")

	// ErrSynthesisFailed covers every other failure
	ErrSynthesisFailed = errors.Wrap(errors.ErrExternal, "image synthesis failed")
)

// Image is a generated picture. ThumbnailPath is set only when a
// downscaled copy was stored locally.
type Image struct {
	URL           string
	ThumbnailPath string
}

// Config holds image client settings
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Size           string
	Quality        string
	Timeout        time.Duration
	MaxPromptRunes int
	Denylist       []string
}

// ThumbnailStore re-hosts a resized copy of an image URL and returns its path
type ThumbnailStore interface {
	Store(ctx context.Context, imageURL string) (string, error)
}

// Client generates images through the OpenAI images API
type Client struct {
	client     openai.Client
	cfg        Config
	prompts    *PromptBuilder
	limiter    ratelimit.Limiter
	thumbnails ThumbnailStore
	log        *logger.Logger
}

func NewClient(cfg Config, limiter ratelimit.Limiter, thumbnails ThumbnailStore, httpClient *http.Client, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 9 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = openai.ImageModelDallE3
	}
	if cfg.Size == "" {
		cfg.Size = string(openai.ImageGenerateParamsSize1024x1024)
	}
	if cfg.Quality == "" {
		cfg.Quality = string(openai.ImageGenerateParamsQualityHD)
	}
	denylist := cfg.Denylist
	if len(denylist) == 0 {
		denylist = DefaultDenylist
	}
	if limiter == nil {
		limiter = ratelimit.NoOp{}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		client:     openai.NewClient(opts...),
		cfg:        cfg,
		prompts:    NewPromptBuilder(denylist, cfg.MaxPromptRunes),
		limiter:    limiter,
		thumbnails: thumbnails,
		log:        log.With("component", "image_synthesis", "model", cfg.Model),
	}
}

// Synthesize generates one image for prompt in style. Content-policy refusals
// wrap ErrContentPolicy, everything else wraps ErrSynthesisFailed.
func (c *Client) Synthesize(ctx context.Context, prompt, style string) (Image, error) {
	start := time.Now()

	url, err := c.generate(ctx, c.prompts.Build(prompt, style))
	if err != nil {
		switch {
		case errors.Is(err, ErrContentPolicy):
			metrics.RecordExternalCall("image", time.Since(start), "content_policy")
			c.log.Infow("Image prompt refused by content policy", "error", err)
		default:
			metrics.RecordExternalCall("image", time.Since(start), "error")
			c.log.Warnw("Image synthesis failed", "error", err, "duration", time.Since(start))
		}
		return Image{}, err
	}
	metrics.RecordExternalCall("image", time.Since(start), "success")

	img := Image{URL: url}
	if c.thumbnails != nil {
		path, err := c.thumbnails.Store(ctx, url)
		if err != nil {
			c.log.Warnw("Thumbnail creation failed", "error", err)
		} else {
			img.ThumbnailPath = path
		}
	}
	return img, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if !c.limiter.Allow() {
		return "", errors.Wrapf(ErrSynthesisFailed, "%v", &ratelimit.Error{Name: "image", Limit: c.limiter.Limit()})
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(c.cfg.Model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(c.cfg.Size),
		Quality:        openai.ImageGenerateParamsQuality(c.cfg.Quality),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && isContentPolicy(apiErr) {
			return "", errors.Wrapf(ErrContentPolicy, "status %d: %s", apiErr.StatusCode, apiErr.Code)
		}
		return "", errors.Wrapf(ErrSynthesisFailed, "%v", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.Wrap(ErrSynthesisFailed, "response carried no image url")
	}
	return resp.Data[0].URL, nil
}

func isContentPolicy(apiErr *openai.Error) bool {
	if apiErr.Code == "content_policy_violation" {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "safety system")
}
