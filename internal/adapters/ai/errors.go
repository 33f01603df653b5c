package ai

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/openai/openai-go/v3"

	"dpterminal/internal/adapters/ratelimit"
	"dpterminal/pkg/errors"
)

// Kind categorizes a completion failure
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream"
	KindNetwork     Kind = "network"
	KindMalformed   Kind = "malformed"
)

// UserMessage returns a fixed text safe to show the user
func (k Kind) UserMessage() string {
	switch k {
	case KindRateLimited:
		return "⚠️ System overload - too many requests right now. Try again in a moment!"
	case KindNetwork:
		return "⚠️ Couldn't reach the AI service - check back shortly!"
	case KindMalformed:
		return "⚠️ The AI service sent an unreadable reply. Please try again."
	default:
		return "⚠️ The AI service returned an error. Please try again later."
	}
}

// CompletionError is returned by Complete for every failure
type CompletionError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	return "completion " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind, defaulting to upstream for foreign errors
func KindOf(err error) Kind {
	var cerr *CompletionError
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUpstream
}

func classify(err error) *CompletionError {
	var rlErr *ratelimit.Error
	if errors.As(err, &rlErr) {
		return &CompletionError{Kind: KindRateLimited, Err: errors.Wrap(errors.ErrRateLimitExceeded, err.Error())}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return &CompletionError{Kind: KindRateLimited, StatusCode: apiErr.StatusCode, Err: errors.Wrapf(errors.ErrRateLimitExceeded, "status %d", apiErr.StatusCode)}
		}
		return &CompletionError{Kind: KindUpstream, StatusCode: apiErr.StatusCode, Err: errors.Wrapf(errors.ErrExternal, "status %d: %s", apiErr.StatusCode, apiErr.Type)}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &CompletionError{Kind: KindNetwork, Err: errors.Wrap(errors.ErrTimeout, err.Error())}
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.Canceled) {
		return &CompletionError{Kind: KindNetwork, Err: errors.Wrap(errors.ErrUnavailable, err.Error())}
	}

	if errors.Is(err, errors.ErrMalformedResponse) || strings.Contains(err.Error(), "parsing response json") {
		return &CompletionError{Kind: KindMalformed, Err: errors.Wrap(errors.ErrMalformedResponse, err.Error())}
	}

	return &CompletionError{Kind: KindUpstream, Err: errors.Wrap(errors.ErrExternal, err.Error())}
}
