package ai

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

// CompletionConfig configures a chat completion client for an
// OpenAI-compatible endpoint (DeepSeek or OpenAI)
type CompletionConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
}

// CompletionClient produces one reply for a system prompt and a user message.
// History is never sent.
type CompletionClient struct {
	client  openai.Client
	cfg     CompletionConfig
	limiter ratelimit.Limiter
	log     *logger.Logger
}

// NewCompletionClient creates a client. SDK retries are disabled.
func NewCompletionClient(cfg CompletionConfig, limiter ratelimit.Limiter, httpClient *http.Client, log *logger.Logger) *CompletionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
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

	return &CompletionClient{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		limiter: limiter,
		log:     log.With("component", "completion", "provider", cfg.Provider, "model", cfg.Model),
	}
}

// Complete returns the first choice's content. Every failure is a *CompletionError.
func (c *CompletionClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	start := time.Now()

	text, err := c.complete(ctx, systemPrompt, userMessage)
	if err != nil {
		cerr := classify(err)
		metrics.RecordExternalCall("completion", time.Since(start), string(cerr.Kind))
		c.log.Warnw("Completion failed",
			"kind", cerr.Kind,
			"status", cerr.StatusCode,
			"error", err,
			"duration", time.Since(start),
		)
		return "", cerr
	}

	metrics.RecordExternalCall("completion", time.Since(start), "success")
	return text, nil
}

func (c *CompletionClient) complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if !c.limiter.Allow() {
		return "", &ratelimit.Error{Name: "completion", Limit: c.limiter.Limit()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.Wrap(errors.ErrMalformedResponse, "no choices in completion")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.Wrap(errors.ErrMalformedResponse, "empty completion content")
	}
	return text, nil
}
