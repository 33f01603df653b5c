package bootstrap

import (
	"context"
	"sync"

	"dpterminal/internal/adapters/ai"
	"dpterminal/internal/adapters/config"
	"dpterminal/internal/adapters/imagegen"
	"dpterminal/internal/adapters/kafka"
	"dpterminal/internal/adapters/pricefeed"
	redisclient "dpterminal/internal/adapters/redis"
	"dpterminal/internal/adapters/social"
	"dpterminal/internal/api"
	"dpterminal/internal/api/health"
	"dpterminal/internal/domain/personality"
	domainsession "dpterminal/internal/domain/session"
	"dpterminal/internal/domain/thumbnail"
	"dpterminal/internal/events"
	dispatchsvc "dpterminal/internal/services/dispatch"
	sessionsvc "dpterminal/internal/services/session"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer. Redis is nil when REDIS_HOST is unset.
	Redis *redisclient.Client

	// Domain Layer
	Repos       *Repositories
	Personality *personality.Registry

	// External Adapters
	Adapters *Adapters

	// Domain Layer - Services
	Services *Services

	// Application Layer
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Session   domainsession.Repository
	Thumbnail thumbnail.Repository
}

// Adapters groups all external adapters. Optional ones stay nil when disabled.
type Adapters struct {
	PriceFeed   *pricefeed.Client
	Completion  *ai.CompletionClient
	Images      *imagegen.Client
	Thumbnailer *imagegen.Thumbnailer
	Publisher   social.Publisher

	// Kafka
	KafkaProducer  *kafka.Producer
	EventPublisher *events.Publisher
}

// Services groups all domain services
type Services struct {
	Session  *sessionsvc.Service
	Dispatch *dispatchsvc.Service
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
}

// Start starts the HTTP server in the background
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Adapters.KafkaProducer,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
