package bootstrap

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"dpterminal/internal/adapters/ai"
	"dpterminal/internal/adapters/config"
	errnoop "dpterminal/internal/adapters/errors/noop"
	"dpterminal/internal/adapters/errors/sentry"
	"dpterminal/internal/adapters/imagegen"
	"dpterminal/internal/adapters/kafka"
	"dpterminal/internal/adapters/pricefeed"
	"dpterminal/internal/adapters/ratelimit"
	redisclient "dpterminal/internal/adapters/redis"
	"dpterminal/internal/adapters/social"
	"dpterminal/internal/api"
	"dpterminal/internal/api/health"
	"dpterminal/internal/domain/personality"
	"dpterminal/internal/events"
	"dpterminal/internal/metrics"
	"dpterminal/internal/repository/memory"
	redisrepo "dpterminal/internal/repository/redis"
	dispatchsvc "dpterminal/internal/services/dispatch"
	sessionsvc "dpterminal/internal/services/session"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
	"dpterminal/pkg/reconnect"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects to Redis when configured
func (c *Container) MustInitInfrastructure() {
	if !c.Config.Redis.Enabled() {
		c.Log.Info("Redis not configured, using in-memory storage")
		return
	}

	c.Log.Info("Connecting to Redis...")
	retrier := reconnect.NewManager(reconnect.Config{MaxAttempts: c.Config.Redis.ConnectAttempts}, c.Log)
	err := retrier.Connect(c.Context, "redis", func(ctx context.Context) error {
		client, err := redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			return err
		}
		c.Redis = client
		return nil
	})
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	metrics.RegisterRedisPoolCollector(c.Redis.Client())
	c.Log.Info("✓ Redis connected")
}

// redisClient returns the raw client or nil when Redis is disabled
func (c *Container) redisClient() *goredis.Client {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Client()
}

// ========================================
// Phase 3: Domain Layer - Repositories
// ========================================

// MustInitRepositories initializes repositories and the personality registry
func (c *Container) MustInitRepositories() {
	if rdb := c.redisClient(); rdb != nil {
		c.Repos.Session = redisrepo.NewSessionRepository(rdb)
		c.Repos.Thumbnail = redisrepo.NewThumbnailRepository(rdb)
	} else {
		c.Repos.Session = memory.NewSessionRepository()
		c.Repos.Thumbnail = memory.NewThumbnailRepository()
	}

	registry, err := personality.LoadEmbedded(c.Config.Wallet.Address)
	if err != nil {
		c.Log.Fatalf("failed to load personalities: %v", err)
	}
	c.Personality = registry
	c.Log.Infow("✓ Personalities loaded", "count", len(registry.Keys()))
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters creates clients for the price feed, AI providers, social feed and Kafka
func (c *Container) MustInitAdapters() {
	cfg := c.Config
	rdb := c.redisClient()

	c.Adapters.PriceFeed = pricefeed.NewClient(pricefeed.Config{
		BaseURL: cfg.PriceFeed.BaseURL,
		APIKey:  cfg.PriceFeed.APIKey,
		Timeout: cfg.PriceFeed.Timeout,
	}, c.Log)

	c.Adapters.Completion = ai.NewCompletionClient(ai.CompletionConfig{
		Provider:    cfg.Completion.Provider,
		APIKey:      cfg.Completion.APIKey(),
		BaseURL:     cfg.Completion.ResolvedBaseURL(),
		Model:       cfg.Completion.ResolvedModel(),
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
		Timeout:     cfg.Completion.Timeout,
	}, ratelimit.New("completion", cfg.RateLimit.CompletionPerMinute, rdb), nil, c.Log)
	c.Log.Infow("✓ Completion client initialized",
		"provider", cfg.Completion.Provider,
		"model", cfg.Completion.ResolvedModel(),
	)

	c.Adapters.Images, c.Adapters.Thumbnailer = provideImageClient(cfg, c.Repos, rdb, c.Log)
	c.Adapters.Publisher = providePublisher(cfg, c.Log)

	if cfg.Kafka.Enabled() {
		c.Adapters.KafkaProducer = provideKafkaProducer(cfg, c.Log)
		c.Adapters.EventPublisher = events.NewPublisher(c.Adapters.KafkaProducer, cfg.Kafka.Topic, c.Log)
	} else {
		c.Log.Info("Kafka brokers not configured, dispatch events disabled")
	}
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices wires the session and dispatch services
func (c *Container) MustInitServices() {
	c.Services.Session = sessionsvc.NewService(c.Repos.Session, c.Personality, c.Config.HTTP.SessionTTL, c.Log)

	deps := dispatchsvc.Deps{
		Registry:   c.Personality,
		Prices:     c.Adapters.PriceFeed,
		Completion: c.Adapters.Completion,
		Publisher:  c.Adapters.Publisher,
		Background: c.WG,
	}
	// nil pointers must not leak into the interfaces
	if c.Adapters.Images != nil {
		deps.Images = c.Adapters.Images
	}
	if c.Adapters.EventPublisher != nil {
		deps.Events = c.Adapters.EventPublisher
	}
	c.Services.Dispatch = dispatchsvc.NewService(deps, c.Log)
	c.Log.Info("✓ Services initialized")
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication builds the health handler and HTTP server
func (c *Container) MustInitApplication() {
	var checks []health.Check
	if rdb := c.redisClient(); rdb != nil {
		checks = append(checks, health.RedisCheck(rdb))
	}
	c.Application.HealthHandler = health.New(c.Log, c.Config.App.Name, c.Config.App.Version, checks...)
	c.Application.HTTPServer = provideHTTPServer(c.Config, c.Services, c.Repos, c.Adapters, c.Application.HealthHandler, c.Log)
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.App.Env, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideImageClient(cfg *config.Config, repos *Repositories, rdb *goredis.Client, log *logger.Logger) (*imagegen.Client, *imagegen.Thumbnailer) {
	if !cfg.ImageGenerationAvailable() {
		log.Info("Image generation disabled (no OpenAI key or IMAGE_ENABLED=false)")
		return nil, nil
	}

	var (
		thumbnailer *imagegen.Thumbnailer
		store       imagegen.ThumbnailStore
	)
	if cfg.Image.ThumbnailEnabled {
		thumbnailer = imagegen.NewThumbnailer(repos.Thumbnail, nil,
			cfg.Image.ThumbnailSize, cfg.Image.ThumbnailTTL, cfg.Image.ThumbnailMaxBytes)
		store = thumbnailer
	}

	client := imagegen.NewClient(imagegen.Config{
		APIKey:         cfg.Completion.OpenAIKey,
		BaseURL:        cfg.Image.BaseURL,
		Model:          cfg.Image.Model,
		Size:           cfg.Image.Size,
		Quality:        cfg.Image.Quality,
		Timeout:        cfg.Image.Timeout,
		MaxPromptRunes: cfg.Image.MaxPromptRunes,
		Denylist:       cfg.Image.Denylist,
	}, ratelimit.New("image", cfg.RateLimit.ImagePerMinute, rdb), store, nil, log)

	log.Infow("✓ Image synthesis initialized",
		"model", cfg.Image.Model,
		"thumbnails", cfg.Image.ThumbnailEnabled,
	)
	return client, thumbnailer
}

func providePublisher(cfg *config.Config, log *logger.Logger) social.Publisher {
	switch cfg.Social.Provider {
	case config.SocialTwitter:
		log.Info("✓ Social publishing via Twitter")
		return social.NewTwitter(cfg.Social.TwitterBaseURL, cfg.Social.TwitterBearerToken, cfg.Social.Timeout)
	case config.SocialTelegram:
		tg, err := social.NewTelegram(cfg.Social.TelegramBotToken, cfg.Social.TelegramChannelID, "", cfg.Social.Timeout)
		if err != nil {
			log.Warnf("Telegram publisher unavailable, publishing disabled: %v", err)
			return nil
		}
		log.Info("✓ Social publishing via Telegram")
		return tg
	default:
		log.Info("Social publishing disabled")
		return nil
	}
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   true,
	})
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return producer
}

func provideHTTPServer(
	cfg *config.Config,
	services *Services,
	repos *Repositories,
	adapters *Adapters,
	healthHandler *health.Handler,
	log *logger.Logger,
) *api.Server {
	deps := api.Dependencies{
		Dispatcher: services.Dispatch,
		Sessions:   services.Session,
		Health:     healthHandler,
	}
	if adapters.Thumbnailer != nil {
		deps.Thumbnails = repos.Thumbnail
	}

	return api.NewServer(api.ServerConfig{
		Port:           cfg.HTTP.Port,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		SessionCookie:  cfg.HTTP.SessionCookie,
		SessionTTL:     cfg.HTTP.SessionTTL,
		SecureCookies:  cfg.App.IsProduction() || cfg.HTTP.ForceHTTPS,
		ForceHTTPS:     cfg.HTTP.ForceHTTPS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, deps, log)
}

