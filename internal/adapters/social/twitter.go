package social

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"dpterminal/pkg/errors"
)

// TwitterMaxLength is the post limit of the v2 tweets endpoint
const TwitterMaxLength = 280

// Twitter publishes through the v2 POST /2/tweets endpoint with a user-context bearer token
type Twitter struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewTwitter(baseURL, token string, timeout time.Duration) *Twitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Twitter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *Twitter) Name() string   { return "twitter" }
func (t *Twitter) MaxLength() int { return TwitterMaxLength }

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

func (t *Twitter) Publish(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", errors.Wrap(err, "marshal tweet")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create tweet request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(errors.ErrUnavailable, "send tweet: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", errors.Wrap(err, "read tweet response")
	}

	var out tweetResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errors.Wrap(errors.ErrRateLimitExceeded, "twitter")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrapf(errors.ErrExternal, "twitter status %d: %s", resp.StatusCode, out.Title)
	}
	if out.Data.ID == "" {
		return "", errors.Wrap(errors.ErrMalformedResponse, "tweet id missing")
	}
	return out.Data.ID, nil
}
