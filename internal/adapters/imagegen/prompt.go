package imagegen

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultDenylist is stripped from prompts before they leave the service
var DefaultDenylist = []string{
	"nsfw", "nude", "naked", "gore", "porn", "explicit", "beheading",
}

const (
	promptModifiers = "8K resolution, highly detailed."
	fallbackSubject = "abstract crypto art"
)

// PromptBuilder turns a user message into an upstream image prompt
type PromptBuilder struct {
	deny     *regexp.Regexp
	maxRunes int
}

// NewPromptBuilder compiles the denylist into one case-insensitive,
// word-bounded pattern. maxRunes <= 0 means no cap.
func NewPromptBuilder(denylist []string, maxRunes int) *PromptBuilder {
	b := &PromptBuilder{maxRunes: maxRunes}

	terms := make([]string, 0, len(denylist))
	for _, t := range denylist {
		t = strings.TrimSpace(t)
		if t != "" {
			terms = append(terms, regexp.QuoteMeta(t))
		}
	}
	if len(terms) > 0 {
		b.deny = regexp.MustCompile(`(?i)\b(?:` + strings.Join(terms, "|") + `)\b`)
	}
	return b
}

// Clean strips denied terms, collapses whitespace and caps the length
func (b *PromptBuilder) Clean(raw string) string {
	s := raw
	if b.deny != nil {
		s = b.deny.ReplaceAllString(s, " ")
	}
	s = strings.Join(strings.Fields(s), " ")

	if b.maxRunes > 0 {
		if r := []rune(s); len(r) > b.maxRunes {
			s = strings.TrimSpace(string(r[:b.maxRunes]))
		}
	}
	return s
}

// Build returns the full upstream prompt for raw in the given style
func (b *PromptBuilder) Build(raw, style string) string {
	subject := b.Clean(raw)
	if subject == "" {
		subject = fallbackSubject
	}
	return fmt.Sprintf("Professional digital art of %s. Style: %s. %s", subject, style, promptModifiers)
}
