package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/flora-search/internal/cache"
	"github.com/aihub/flora-search/internal/config"
	"github.com/aihub/flora-search/internal/di"
	"github.com/aihub/flora-search/internal/fetcher"
	"github.com/aihub/flora-search/internal/ingest"
	"github.com/aihub/flora-search/internal/kafka"
	"github.com/aihub/flora-search/internal/logger"
	"github.com/aihub/flora-search/internal/search"
	"github.com/aihub/flora-search/internal/store"
)

// App encapsulates the wired components and the resources released on shutdown.
type App struct {
	Config *config.Config
	Store  *store.Store
	Engine *search.Engine
	Cache  cache.ResultCache
	Mirror fetcher.Mirror
	Events ingest.EventPublisher
	Logger *zap.Logger

	cleanup  *di.Cleanup
	consumer *kafka.Consumer
}

type components struct {
	dig.In

	Config  *config.Config
	Store   *store.Store
	Engine  *search.Engine
	Cache   cache.ResultCache
	Mirror  fetcher.Mirror
	Events  ingest.EventPublisher
	Logger  *zap.Logger
	Cleanup *di.Cleanup
}

// Init loads .env, the logger and configuration, then resolves every component
// from the dependency container.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return InitWithConfig(cfg, logger.GetLogger())
}

// InitWithConfig wires the application from an already loaded configuration.
func InitWithConfig(cfg *config.Config, log *zap.Logger) (*App, error) {
	container := di.InitContainer()
	if err := di.RegisterProviders(container, cfg, log); err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}

	app := &App{}
	err := container.Invoke(func(c components) {
		app.Config = c.Config
		app.Store = c.Store
		app.Engine = c.Engine
		app.Cache = c.Cache
		app.Mirror = c.Mirror
		app.Events = c.Events
		app.Logger = c.Logger
		app.cleanup = c.Cleanup
	})
	if err != nil {
		return nil, fmt.Errorf("resolve components: %w", err)
	}

	app.Logger.Info("Application initialized",
		zap.String("index", cfg.Index.Provider),
		zap.String("text_embedding", cfg.Embedding.TextProvider),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("cache", cfg.Cache.Provider),
		zap.Bool("queue", cfg.Queue.Enabled))
	return app, nil
}

// StartEventConsumer subscribes to import events and drops cached search
// results whenever new flowers land in the index.
func (a *App) StartEventConsumer(ctx context.Context) error {
	if !a.Config.Queue.Enabled {
		return nil
	}
	k := a.Config.Queue.Kafka
	consumer, err := kafka.NewConsumer(k.Brokers, k.GroupID, []string{k.Topic}, a.Logger.Named("kafka"))
	if err != nil {
		return err
	}
	consumer.RegisterHandler(k.Topic, a.handleImported)
	consumer.Start(ctx)
	a.consumer = consumer
	return nil
}

func (a *App) handleImported(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := kafka.ParseFloraImported(message.Value)
	if err != nil {
		return err
	}
	a.Logger.Debug("Flower imported, invalidating search cache",
		zap.String("flora_id", event.FloraID),
		zap.String("common_name", event.CommonName))
	return a.Cache.Invalidate(ctx)
}

// Shutdown releases resources in reverse order of acquisition.
func (a *App) Shutdown() error {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.Logger.Warn("Failed to close Kafka consumer", zap.Error(err))
		}
	}
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup.Run()
}
