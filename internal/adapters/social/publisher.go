package social

import (
	"context"
	"unicode/utf8"
)

// Publisher posts a text to a social feed
type Publisher interface {
	// Publish posts text and returns the provider's post id.
	// Callers must pass text within MaxLength.
	Publish(ctx context.Context, text string) (string, error)

	// Name identifies the provider in logs and metrics
	Name() string

	// MaxLength is the post limit in characters
	MaxLength() int
}

const ellipsis = "…"

// Truncate cuts text to at most limit runes, ending with an ellipsis when cut
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit == 1 {
		return ellipsis
	}
	r := []rune(text)
	return string(r[:limit-1]) + ellipsis
}
