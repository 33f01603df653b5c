package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"dpterminal/pkg/errors"
)

// Completion providers
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
)

// Social providers
const (
	SocialNone     = "none"
	SocialTwitter  = "twitter"
	SocialTelegram = "telegram"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Completion    CompletionConfig
	Image         ImageConfig
	PriceFeed     PriceFeedConfig
	Social        SocialConfig
	Wallet        WalletConfig
	RateLimit     RateLimitConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"dpterminal"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

type HTTPConfig struct {
	Port           int           `envconfig:"PORT" default:"5000"`
	ForceHTTPS     bool          `envconfig:"FORCE_HTTPS" default:"false"`
	AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	SessionCookie  string        `envconfig:"SESSION_COOKIE_NAME" default:"dp_session"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	ReadTimeout    time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	MaxBodyBytes   int64         `envconfig:"HTTP_MAX_BODY_BYTES" default:"65536"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RedisConfig is optional: an empty host selects in-memory storage
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	// ConnectAttempts bounds startup retries; 0 retries until shutdown
	ConnectAttempts int `envconfig:"REDIS_CONNECT_ATTEMPTS" default:"5"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig is optional: no brokers disables dispatch events
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_DISPATCH_TOPIC" default:"dpterminal.dispatch"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type CompletionConfig struct {
	Provider    string        `envconfig:"COMPLETION_PROVIDER" default:"deepseek"`
	DeepSeekKey string        `envconfig:"DEEPSEEK_API_KEY"`
	OpenAIKey   string        `envconfig:"OPENAI_API_KEY"`
	BaseURL     string        `envconfig:"COMPLETION_BASE_URL"`
	Model       string        `envconfig:"COMPLETION_MODEL"`
	Temperature float64       `envconfig:"COMPLETION_TEMPERATURE" default:"0.7"`
	MaxTokens   int64         `envconfig:"COMPLETION_MAX_TOKENS" default:"1000"`
	Timeout     time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"8s"`
}

// APIKey returns the key of the selected provider
func (c CompletionConfig) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIKey
	}
	return c.DeepSeekKey
}

// ResolvedBaseURL returns the explicit base URL or the provider default
func (c CompletionConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Provider == ProviderOpenAI {
		return "https://api.openai.com/v1/"
	}
	return "https://api.deepseek.com/"
}

// ResolvedModel returns the explicit model or the provider default
func (c CompletionConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "deepseek-chat"
}

// ImageConfig uses the OpenAI key from CompletionConfig
type ImageConfig struct {
	Enabled           bool          `envconfig:"IMAGE_ENABLED" default:"true"`
	BaseURL           string        `envconfig:"IMAGE_BASE_URL" default:"https://api.openai.com/v1/"`
	Model             string        `envconfig:"IMAGE_MODEL" default:"dall-e-3"`
	Size              string        `envconfig:"IMAGE_SIZE" default:"1024x1024"`
	Quality           string        `envconfig:"IMAGE_QUALITY" default:"hd"`
	Timeout           time.Duration `envconfig:"IMAGE_TIMEOUT" default:"9s"`
	MaxPromptRunes    int           `envconfig:"IMAGE_MAX_PROMPT_RUNES" default:"400"`
	Denylist          []string      `envconfig:"IMAGE_PROMPT_DENYLIST"`
	ThumbnailEnabled  bool          `envconfig:"IMAGE_THUMBNAIL_ENABLED" default:"false"`
	ThumbnailSize     int           `envconfig:"IMAGE_THUMBNAIL_SIZE" default:"256"`
	ThumbnailTTL      time.Duration `envconfig:"IMAGE_THUMBNAIL_TTL" default:"1h"`
	ThumbnailMaxBytes int64         `envconfig:"IMAGE_THUMBNAIL_MAX_BYTES" default:"10485760"`
}

type PriceFeedConfig struct {
	BaseURL string        `envconfig:"PRICE_FEED_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	APIKey  string        `envconfig:"COINGECKO_API_KEY"`
	Timeout time.Duration `envconfig:"PRICE_FEED_TIMEOUT" default:"5s"`
}

type SocialConfig struct {
	Provider           string        `envconfig:"SOCIAL_PROVIDER" default:"none"`
	Timeout            time.Duration `envconfig:"SOCIAL_TIMEOUT" default:"5s"`
	TwitterBaseURL     string        `envconfig:"TWITTER_BASE_URL" default:"https://api.twitter.com"`
	TwitterBearerToken string        `envconfig:"TWITTER_BEARER_TOKEN"`
	TelegramBotToken   string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChannelID  int64         `envconfig:"TELEGRAM_CHANNEL_ID"`
}

type WalletConfig struct {
	Address string `envconfig:"WALLET_ADDRESS" default:"7CSW7ofgjD8ThrWsNAzTKKYtyqe3QSibsUYcCPFV1AFG"`
}

// RateLimitConfig guards outbound AI calls. Zero disables the limiter.
type RateLimitConfig struct {
	CompletionPerMinute int `envconfig:"RATE_LIMIT_COMPLETION_PER_MINUTE" default:"60"`
	ImagePerMinute      int `envconfig:"RATE_LIMIT_IMAGE_PER_MINUTE" default:"5"`
}

type ErrorTrackingConfig struct {
	Enabled   bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN string `envconfig:"SENTRY_DSN"`
}

// Load reads configuration from environment variables.
// A .env file is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.Completion.Provider {
	case ProviderDeepSeek, ProviderOpenAI:
	default:
		return errors.NewValidationError("COMPLETION_PROVIDER", "unsupported provider", c.Completion.Provider)
	}
	if strings.TrimSpace(c.Completion.APIKey()) == "" {
		return errors.NewValidationError("COMPLETION_API_KEY", "api key required for provider "+c.Completion.Provider, "")
	}

	switch c.Social.Provider {
	case SocialNone:
	case SocialTwitter:
		if c.Social.TwitterBearerToken == "" {
			return errors.NewValidationError("TWITTER_BEARER_TOKEN", "required when SOCIAL_PROVIDER=twitter", "")
		}
	case SocialTelegram:
		if c.Social.TelegramBotToken == "" || c.Social.TelegramChannelID == 0 {
			return errors.NewValidationError("TELEGRAM_BOT_TOKEN", "token and channel required when SOCIAL_PROVIDER=telegram", "")
		}
	default:
		return errors.NewValidationError("SOCIAL_PROVIDER", "unsupported provider", c.Social.Provider)
	}

	if c.Image.ThumbnailSize <= 0 {
		return errors.NewValidationError("IMAGE_THUMBNAIL_SIZE", "must be positive", c.Image.ThumbnailSize)
	}
	if c.Wallet.Address == "" {
		return errors.NewValidationError("WALLET_ADDRESS", "must not be empty", "")
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		return errors.NewValidationError("SENTRY_DSN", "required when error tracking is enabled", "")
	}
	return nil
}

// ImageGenerationAvailable reports whether an OpenAI key exists for image synthesis
func (c *Config) ImageGenerationAvailable() bool {
	return c.Image.Enabled && c.Completion.OpenAIKey != ""
}
