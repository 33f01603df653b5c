package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"dpterminal/internal/adapters/ai"
	"dpterminal/internal/adapters/imagegen"
	"dpterminal/internal/adapters/pricefeed"
	"dpterminal/internal/adapters/social"
	"dpterminal/internal/domain/personality"
	"dpterminal/internal/domain/session"
	"dpterminal/internal/events"
	"dpterminal/internal/metrics"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// QuoteFetcher returns live quotes keyed by symbol
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context) (map[string]pricefeed.Quote, error)
}

// ImageSynthesizer turns a prompt and style into a hosted image
type ImageSynthesizer interface {
	Synthesize(ctx context.Context, prompt, style string) (imagegen.Image, error)
}

// Completer answers a user message under a system prompt
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// EventPublisher emits dispatch events. It must not block on failure.
type EventPublisher interface {
	PublishDispatch(ctx context.Context, ev events.DispatchEvent)
}

// Envelope is the result of handling one message
type Envelope struct {
	Text        string  `json:"response"`
	Image       *string `json:"image"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Personality string  `json:"personality"`
	Intent      Intent  `json:"-"`
}

// Deps wires the collaborators of Service. Images, Publisher and Events are optional.
// Background tracks event goroutines so shutdown can wait for them before
// closing the producer; nil uses a private group.
type Deps struct {
	Registry   *personality.Registry
	Classifier *Classifier
	Prices     QuoteFetcher
	Images     ImageSynthesizer
	Completion Completer
	Publisher  social.Publisher
	Events     EventPublisher
	Background *sync.WaitGroup
}

// Service routes messages to a handling strategy and always returns an envelope
type Service struct {
	registry   *personality.Registry
	classifier *Classifier
	prices     QuoteFetcher
	images     ImageSynthesizer
	completion Completer
	publisher  social.Publisher
	events     EventPublisher
	background *sync.WaitGroup
	log        *logger.Logger
}

// NewService creates a dispatcher. A nil Classifier uses DefaultKeywords.
func NewService(deps Deps, log *logger.Logger) *Service {
	classifier := deps.Classifier
	if classifier == nil {
		classifier = NewClassifier(DefaultKeywords())
	}
	background := deps.Background
	if background == nil {
		background = &sync.WaitGroup{}
	}
	return &Service{
		registry:   deps.Registry,
		classifier: classifier,
		prices:     deps.Prices,
		images:     deps.Images,
		completion: deps.Completion,
		publisher:  deps.Publisher,
		events:     deps.Events,
		background: background,
		log:        log.With("component", "dispatch"),
	}
}

// outcome is what a branch produced
type outcome struct {
	text      string
	imageURL  string
	thumbnail string
	failed    bool
}

// Handle classifies message, runs the matching branch and optionally publishes the text.
// Unknown personality keys resolve to the default profile.
func (s *Service) Handle(ctx context.Context, message, personalityKey string, publish bool) Envelope {
	start := time.Now()
	profile := s.registry.Resolve(personalityKey)
	intent := s.classifier.Classify(message)

	res := s.run(ctx, intent, message, profile)
	if strings.TrimSpace(res.text) == "" {
		res.text = GenericFailureText
		res.failed = true
	}

	env := Envelope{
		Text:        res.text,
		Thumbnail:   res.thumbnail,
		Personality: profile.Key,
		Intent:      intent,
	}
	if res.imageURL != "" {
		url := res.imageURL
		env.Image = &url
	}

	published := false
	if publish {
		published = s.publish(ctx, env.Text)
	}

	duration := time.Since(start)
	metrics.RecordDispatch(string(intent), duration, res.failed)
	s.log.Debugw("Message dispatched",
		"intent", intent,
		"personality", profile.Key,
		"failed", res.failed,
		"duration", duration,
	)

	if s.events != nil {
		ev := events.NewDispatchEvent()
		ev.SessionID = session.IDFromContext(ctx)
		ev.Intent = string(intent)
		ev.Personality = profile.Key
		ev.Failed = res.failed
		ev.HasImage = env.Image != nil
		ev.Published = published
		ev.DurationMS = duration.Milliseconds()
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.events.PublishDispatch(ctx, ev)
		}()
	}

	return env
}

// Wait blocks until every pending dispatch event has been handed to the publisher
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) run(ctx context.Context, intent Intent, message string, profile personality.Profile) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorWithContext(ctx,
				errors.Wrapf(errors.ErrInternal, "panic in %s branch: %v", intent, r),
				map[string]string{"component": "dispatch", "intent": string(intent)},
			)
			res = outcome{text: GenericFailureText, failed: true}
		}
	}()

	switch intent {
	case IntentImage:
		return s.handleImage(ctx, message, profile)
	case IntentWallet:
		return outcome{text: profile.WalletResponse}
	case IntentPrice:
		return s.handlePrice(ctx, message)
	default:
		return s.handleChat(ctx, message, profile)
	}
}

func (s *Service) handleImage(ctx context.Context, message string, profile personality.Profile) outcome {
	if s.images == nil {
		return outcome{text: ImageDisabledText, failed: true}
	}

	img, err := s.images.Synthesize(ctx, message, profile.Style())
	if err != nil {
		if errors.Is(err, imagegen.ErrContentPolicy) {
			s.log.Infow("Image refused", "personality", profile.Key)
		}
		return outcome{text: ImageFailedText, failed: true}
	}
	if img.URL == "" {
		s.log.Warnw("Image synthesis returned no URL", "personality", profile.Key)
		return outcome{text: ImageFailedText, failed: true}
	}

	return outcome{text: ImageReadyText, imageURL: img.URL, thumbnail: img.ThumbnailPath}
}

func (s *Service) handlePrice(ctx context.Context, message string) outcome {
	quotes, err := s.prices.FetchQuotes(ctx)
	if err != nil {
		s.log.Warnw("Price lookup failed", "error", err)
		return outcome{text: PriceUnavailableText, failed: true}
	}

	symbols := make([]string, 0, len(pricefeed.Assets))
	for _, a := range pricefeed.Assets {
		symbols = append(symbols, a.Symbol)
	}

	var text string
	if amount, ok := DollarAmount(message); ok {
		mentioned := s.classifier.MentionedAssets(message, symbols)
		if len(mentioned) == 1 {
			if q, ok := quotes[mentioned[0]]; ok && q.PriceUSD.IsPositive() {
				text, err = FormatConversion(amount, q)
			}
		}
	}
	if text == "" && err == nil {
		text, err = FormatListing(quotes)
	}
	if err != nil {
		s.log.Errorw("Failed to render price message", "error", err)
		return outcome{text: GenericFailureText, failed: true}
	}

	return outcome{text: text}
}

func (s *Service) handleChat(ctx context.Context, message string, profile personality.Profile) outcome {
	text, err := s.completion.Complete(ctx, profile.SystemPrompt, message)
	if err != nil {
		return outcome{text: ai.KindOf(err).UserMessage(), failed: true}
	}
	return outcome{text: text}
}

// publish posts text and reports success. Failures are logged and swallowed.
func (s *Service) publish(ctx context.Context, text string) bool {
	postID, err := s.post(ctx, text)
	if errors.Is(err, errors.ErrPublishDisabled) {
		s.log.Debugw("Publish requested but no social provider configured")
		return false
	}

	log := s.log.WithFields(map[string]interface{}{"provider": s.publisher.Name()})
	if err != nil {
		log.Warnw("Social publish failed", "error", err)
		return false
	}
	log.Infow("Published to social feed", "post_id", postID)
	return true
}

// post truncates text to the publisher's limit and sends it
func (s *Service) post(ctx context.Context, text string) (string, error) {
	if s.publisher == nil {
		return "", errors.ErrPublishDisabled
	}
	name := s.publisher.Name()
	postID, err := s.publisher.Publish(ctx, social.Truncate(text, s.publisher.MaxLength()))
	metrics.RecordPublication(name, metrics.StatusFromError(err))
	if err != nil {
		return "", errors.Wrapf(err, "publish to %s", name)
	}
	return postID, nil
}

