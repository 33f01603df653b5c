package pricefeed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dpterminal/internal/metrics"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

var (
	// ErrFeedUnavailable covers transport failures, non-2xx replies and undecodable bodies
	ErrFeedUnavailable = errors.Wrap(errors.ErrUnavailable, "price feed unavailable")

	// ErrNoQuotes means the feed answered but returned nothing usable
	ErrNoQuotes = errors.Wrap(errors.ErrMalformedResponse, "price feed returned no quotes")
)

// Asset is a tracked coin
type Asset struct {
	Symbol string
	FeedID string
}

// Assets lists tracked coins in display order
var Assets = []Asset{
	{Symbol: "BTC", FeedID: "bitcoin"},
	{Symbol: "ETH", FeedID: "ethereum"},
	{Symbol: "SOL", FeedID: "solana"},
}

// Quote is a USD price observation
type Quote struct {
	Symbol     string
	PriceUSD   decimal.Decimal
	ObservedAt time.Time
}

// Config holds price feed client settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches spot prices from the CoinGecko simple price endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "price_feed"),
	}
}

type simplePrice struct {
	USD           *decimal.Decimal `json:"usd"`
	LastUpdatedAt *int64           `json:"last_updated_at"`
}

// FetchQuotes returns quotes keyed by symbol. Only assets with both a price
// and a timestamp are included. No retry is attempted.
func (c *Client) FetchQuotes(ctx context.Context) (map[string]Quote, error) {
	start := time.Now()
	quotes, err := c.fetch(ctx)
	metrics.RecordExternalCall("price_feed", time.Since(start), metrics.StatusFromError(err))

	if err != nil {
		c.log.Warnw("Price fetch failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	return quotes, nil
}

func (c *Client) fetch(ctx context.Context) (map[string]Quote, error) {
	ids := make([]string, 0, len(Assets))
	for _, a := range Assets {
		ids = append(ids, a.FeedID)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_last_updated_at", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create price request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrFeedUnavailable, "send request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(ErrFeedUnavailable, "read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrFeedUnavailable, "status %d", resp.StatusCode)
	}

	var raw map[string]simplePrice
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrapf(ErrFeedUnavailable, "decode response: %v", err)
	}

	quotes := make(map[string]Quote, len(Assets))
	for _, a := range Assets {
		p, ok := raw[a.FeedID]
		if !ok || p.USD == nil || p.LastUpdatedAt == nil {
			continue
		}
		quotes[a.Symbol] = Quote{
			Symbol:     a.Symbol,
			PriceUSD:   *p.USD,
			ObservedAt: time.Unix(*p.LastUpdatedAt, 0).UTC(),
		}
	}

	if len(quotes) == 0 {
		return nil, ErrNoQuotes
	}
	return quotes, nil
}
