package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/internal/adapters/ai"
	"dpterminal/internal/adapters/imagegen"
	"dpterminal/internal/adapters/pricefeed"
	"dpterminal/internal/domain/personality"
	"dpterminal/internal/domain/session"
	"dpterminal/internal/events"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

const testWallet = "7CSW7ofgjD8ThrWsNAzTKKYtyqe3QSibsUYcCPFV1AFG"

type fakePrices struct {
	quotes map[string]pricefeed.Quote
	err    error
	calls  int
}

func (f *fakePrices) FetchQuotes(ctx context.Context) (map[string]pricefeed.Quote, error) {
	f.calls++
	return f.quotes, f.err
}

type fakeImages struct {
	img    imagegen.Image
	err    error
	prompt string
	style  string
}

func (f *fakeImages) Synthesize(ctx context.Context, prompt, style string) (imagegen.Image, error) {
	f.prompt, f.style = prompt, style
	return f.img, f.err
}

type fakeCompletion struct {
	reply  string
	err    error
	system string
	user   string
	calls  int
}

func (f *fakeCompletion) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.calls++
	f.system, f.user = systemPrompt, userMessage
	return f.reply, f.err
}

type fakePublisher struct {
	limit int
	err   error
	text  string
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, text string) (string, error) {
	f.calls++
	f.text = text
	return "post-1", f.err
}

func (f *fakePublisher) Name() string  { return "fake" }
func (f *fakePublisher) MaxLength() int { return f.limit }

type recordingEvents struct {
	mu  sync.Mutex
	got []events.DispatchEvent
	wg  sync.WaitGroup
}

func (r *recordingEvents) PublishDispatch(ctx context.Context, ev events.DispatchEvent) {
	defer r.wg.Done()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
}

type panickingCompletion struct{}

func (panickingCompletion) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	panic("boom")
}

type fixture struct {
	svc        *Service
	registry   *personality.Registry
	prices     *fakePrices
	images     *fakeImages
	completion *fakeCompletion
	publisher  *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := personality.LoadEmbedded(testWallet)
	require.NoError(t, err)

	f := &fixture{
		registry: reg,
		prices: &fakePrices{quotes: map[string]pricefeed.Quote{
			"BTC": {Symbol: "BTC", PriceUSD: decimal.NewFromInt(50000), ObservedAt: observed},
			"ETH": {Symbol: "ETH", PriceUSD: decimal.NewFromInt(3000), ObservedAt: observed},
		}},
		images:     &fakeImages{img: imagegen.Image{URL: "https://images.example/vault.png"}},
		completion: &fakeCompletion{reply: "gm"},
		publisher:  &fakePublisher{limit: 280},
	}
	f.svc = f.build(f.completion)
	return f
}

func (f *fixture) build(completion Completer) *Service {
	return NewService(Deps{
		Registry:   f.registry,
		Prices:     f.prices,
		Images:     f.images,
		Completion: completion,
		Publisher:  f.publisher,
	}, logger.Nop())
}

func TestHandleFallsBackToCompletion(t *testing.T) {
	f := newFixture(t)

	for _, msg := range []string{"hello", "what is the meaning of life", "tell me a joke"} {
		env := f.svc.Handle(context.Background(), msg, "default", false)
		assert.Equal(t, IntentChat, env.Intent)
		assert.Equal(t, "gm", env.Text)
		assert.Nil(t, env.Image)
		assert.Equal(t, msg, f.completion.user)
	}
	assert.Equal(t, 3, f.completion.calls)
	assert.Zero(t, f.prices.calls)
}

func TestHandleUsesPersonalitySystemPrompt(t *testing.T) {
	f := newFixture(t)

	env := f.svc.Handle(context.Background(), "hello", "pirate", false)

	assert.Equal(t, "pirate", env.Personality)
	assert.Equal(t, f.registry.Resolve("pirate").SystemPrompt, f.completion.system)
}

func TestHandleUnknownPersonalityResolvesToDefault(t *testing.T) {
	f := newFixture(t)

	env := f.svc.Handle(context.Background(), "hello", "ninja", false)

	assert.Equal(t, personality.DefaultKey, env.Personality)
	assert.Equal(t, f.registry.Resolve(personality.DefaultKey).SystemPrompt, f.completion.system)
}

func TestHandlePriceConversion(t *testing.T) {
	f := newFixture(t)

	env := f.svc.Handle(context.Background(), "how much is $100 in btc", "default", false)

	assert.Equal(t, IntentPrice, env.Intent)
	assert.Contains(t, env.Text, "100 / 50000 = 0.002000 BTC")
	assert.Contains(t, env.Text, "$50,000.00")
	assert.Contains(t, env.Text, "2024-03-01 12:30:00 UTC")
	assert.Zero(t, f.completion.calls)
}

func TestHandlePriceListing(t *testing.T) {
	f := newFixture(t)

	// two assets named: no single asset isolated
	env := f.svc.Handle(context.Background(), "how much is $100 in btc or eth", "default", false)
	assert.Contains(t, env.Text, "BTC: $50,000.00")
	assert.Contains(t, env.Text, "ETH: $3,000.00")

	env = f.svc.Handle(context.Background(), "crypto prices?", "default", false)
	assert.Contains(t, env.Text, "Live crypto prices")
}

func TestHandlePriceStructureIsStable(t *testing.T) {
	f := newFixture(t)
	first := f.svc.Handle(context.Background(), "what is the price of crypto", "default", false)

	f.prices.quotes["BTC"] = pricefeed.Quote{Symbol: "BTC", PriceUSD: decimal.NewFromInt(51000), ObservedAt: observed.Add(time.Minute)}
	second := f.svc.Handle(context.Background(), "what is the price of crypto", "default", false)

	assert.NotEqual(t, first.Text, second.Text)
	assert.Equal(t, strings.Count(first.Text, "\n"), strings.Count(second.Text, "\n"))
}

func TestHandlePriceFeedFailure(t *testing.T) {
	f := newFixture(t)
	f.prices.err = pricefeed.ErrFeedUnavailable

	env := f.svc.Handle(context.Background(), "btc price", "default", false)

	assert.Equal(t, PriceUnavailableText, env.Text)
	assert.Nil(t, env.Image)
}

func TestHandleWalletIsVerbatim(t *testing.T) {
	f := newFixture(t)

	for _, msg := range []string{"wallet", "what's your wallet? also btc price", "send me the contract address"} {
		env := f.svc.Handle(context.Background(), msg, "pirate", false)
		assert.Equal(t, IntentWallet, env.Intent)
		assert.Equal(t, f.registry.Resolve("pirate").WalletResponse, env.Text)
	}
	assert.Zero(t, f.prices.calls)
	assert.Zero(t, f.completion.calls)
}

func TestHandleImageWithPersonalityStyle(t *testing.T) {
	f := newFixture(t)
	f.images.img.ThumbnailPath = "/thumbnails/abc.png"

	env := f.svc.Handle(context.Background(), "Generate image of a Bitcoin vault", "pirate", false)

	assert.Equal(t, IntentImage, env.Intent)
	assert.Equal(t, ImageReadyText, env.Text)
	require.NotNil(t, env.Image)
	assert.Equal(t, "https://images.example/vault.png", *env.Image)
	assert.Equal(t, "/thumbnails/abc.png", env.Thumbnail)
	assert.Equal(t, "Generate image of a Bitcoin vault", f.images.prompt)
	assert.Equal(t, f.registry.Resolve("pirate").Style(), f.images.style)
}

func TestHandleImageFailure(t *testing.T) {
	for _, err := range []error{imagegen.ErrContentPolicy, imagegen.ErrSynthesisFailed} {
		f := newFixture(t)
		f.images.err = err
		f.images.img = imagegen.Image{}

		env := f.svc.Handle(context.Background(), "draw me a lambo", "default", false)

		assert.Equal(t, ImageFailedText, env.Text)
		assert.Nil(t, env.Image)
	}
}

func TestHandleImageDisabled(t *testing.T) {
	f := newFixture(t)
	svc := NewService(Deps{Registry: f.registry, Prices: f.prices, Completion: f.completion}, logger.Nop())

	env := svc.Handle(context.Background(), "draw me a lambo", "default", false)

	assert.Equal(t, ImageDisabledText, env.Text)
	assert.Nil(t, env.Image)
}

func TestHandleCompletionFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &ai.CompletionError{Kind: ai.KindNetwork, Err: context.DeadlineExceeded}, ai.KindNetwork.UserMessage()},
		{"rate limited", &ai.CompletionError{Kind: ai.KindRateLimited, StatusCode: 429, Err: errors.ErrRateLimitExceeded}, ai.KindRateLimited.UserMessage()},
		{"foreign", errors.New("weird"), ai.KindUpstream.UserMessage()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.completion.err = tt.err
			f.completion.reply = ""

			env := f.svc.Handle(context.Background(), "hello", "default", false)
			assert.Equal(t, tt.want, env.Text)
		})
	}
}

func TestHandleEmptyReplyBecomesGenericText(t *testing.T) {
	f := newFixture(t)
	f.completion.reply = "   "

	env := f.svc.Handle(context.Background(), "hello", "default", false)

	assert.Equal(t, GenericFailureText, env.Text)
}

func TestHandleRecoversPanics(t *testing.T) {
	f := newFixture(t)
	svc := f.build(panickingCompletion{})

	var env Envelope
	require.NotPanics(t, func() {
		env = svc.Handle(context.Background(), "hello", "default", false)
	})
	assert.Equal(t, GenericFailureText, env.Text)
}

func TestHandlePublishTruncates(t *testing.T) {
	f := newFixture(t)
	f.publisher.limit = 10
	f.completion.reply = "a very long answer that will not fit"

	env := f.svc.Handle(context.Background(), "hello", "default", true)

	assert.Equal(t, 1, f.publisher.calls)
	assert.Equal(t, "a very lo…", f.publisher.text)
	assert.Equal(t, "a very long answer that will not fit", env.Text)
}

func TestHandlePublishFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.ErrRateLimitExceeded

	env := f.svc.Handle(context.Background(), "hello", "default", true)

	assert.Equal(t, "gm", env.Text)
	assert.Equal(t, 1, f.publisher.calls)
}

func TestHandleNoPublishWhenNotRequested(t *testing.T) {
	f := newFixture(t)

	f.svc.Handle(context.Background(), "hello", "default", false)

	assert.Zero(t, f.publisher.calls)
}

func TestHandleEmitsDispatchEvent(t *testing.T) {
	f := newFixture(t)
	rec := &recordingEvents{}
	rec.wg.Add(1)
	svc := NewService(Deps{
		Registry:   f.registry,
		Prices:     f.prices,
		Images:     f.images,
		Completion: f.completion,
		Events:     rec,
	}, logger.Nop())

	ctx := session.WithID(context.Background(), "sess-1")
	svc.Handle(ctx, "btc price", "villain", false)
	rec.wg.Wait()

	require.Len(t, rec.got, 1)
	ev := rec.got[0]
	assert.Equal(t, "sess-1", ev.SessionID)
	assert.Equal(t, "price", ev.Intent)
	assert.Equal(t, "villain", ev.Personality)
	assert.False(t, ev.Failed)
	assert.False(t, ev.Published)
}

type slowEvents struct {
	mu  sync.Mutex
	got int
}

func (e *slowEvents) PublishDispatch(ctx context.Context, ev events.DispatchEvent) {
	time.Sleep(10 * time.Millisecond)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got++
}

func TestWaitCoversPendingEvents(t *testing.T) {
	f := newFixture(t)
	rec := &slowEvents{}
	var wg sync.WaitGroup
	svc := NewService(Deps{
		Registry:   f.registry,
		Prices:     f.prices,
		Completion: f.completion,
		Events:     rec,
		Background: &wg,
	}, logger.Nop())

	for i := 0; i < 5; i++ {
		svc.Handle(context.Background(), "hello", "default", false)
	}
	svc.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 5, rec.got)
}

func TestPostWithoutPublisherIsDisabled(t *testing.T) {
	f := newFixture(t)
	svc := NewService(Deps{Registry: f.registry, Completion: f.completion}, logger.Nop())

	_, err := svc.post(context.Background(), "gm")
	assert.True(t, errors.Is(err, errors.ErrPublishDisabled))

	env := svc.Handle(context.Background(), "hello", "default", true)
	assert.Equal(t, "gm", env.Text)
}
