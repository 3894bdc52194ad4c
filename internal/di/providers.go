package di

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/flora-search/internal/cache"
	"github.com/aihub/flora-search/internal/config"
	"github.com/aihub/flora-search/internal/embedding"
	"github.com/aihub/flora-search/internal/fetcher"
	"github.com/aihub/flora-search/internal/index"
	"github.com/aihub/flora-search/internal/ingest"
	"github.com/aihub/flora-search/internal/kafka"
	"github.com/aihub/flora-search/internal/search"
	"github.com/aihub/flora-search/internal/storage"
	"github.com/aihub/flora-search/internal/store"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container, cfg *config.Config, log *zap.Logger) error {
	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *zap.Logger { return log },
		func() *Cleanup { return &Cleanup{} },
		NewVectorIndex,
		NewTextEmbedder,
		NewImageEmbedder,
		NewStore,
		NewResultCache,
		NewMirror,
		NewEventPublisher,
		NewSearchEngine,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

// NewVectorIndex 按配置创建向量索引
func NewVectorIndex(cfg *config.Config, log *zap.Logger, cleanup *Cleanup) (index.VectorIndex, error) {
	if cfg.Index.Provider != "milvus" {
		log.Info("Using in-memory vector index")
		return index.NewMemoryIndex(), nil
	}

	m := cfg.Index.Milvus
	milvusIndex, err := index.NewMilvusIndex(context.Background(), index.MilvusOptions{
		Address:  m.Address,
		Username: m.Username,
		Password: m.Password,
		Database: m.Database,
		Distance: m.Distance,
		UseTLS:   m.UseTLS,
		Timeout:  m.Timeout,
		Logger:   log.Named("milvus"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", m.Address, err)
	}
	cleanup.Add(milvusIndex.Close)
	return milvusIndex, nil
}

// NewTextEmbedder 文本向量化
func NewTextEmbedder(cfg *config.Config) embedding.TextEmbedder {
	e := cfg.Embedding
	return embedding.NewTextEmbedder(e.TextProvider, e.OpenAIAPIKey, e.OpenAIModel, e.Dimensions)
}

// NewImageEmbedder 图片向量化
func NewImageEmbedder() embedding.ImageEmbedder {
	return embedding.NewHistogramEmbedder()
}

// NewStore 双集合存储
func NewStore(cfg *config.Config, idx index.VectorIndex, text embedding.TextEmbedder, image embedding.ImageEmbedder) (*store.Store, error) {
	return store.New(context.Background(), idx, text, image, store.Options{
		TextCollection:  cfg.Index.TextCollection,
		ImageCollection: cfg.Index.ImageCollection,
	})
}

// NewResultCache 检索缓存，Redis不可用时退化为不缓存
func NewResultCache(cfg *config.Config, log *zap.Logger, cleanup *Cleanup) cache.ResultCache {
	if cfg.Cache.Provider != "redis" {
		return cache.NoopCache{}
	}
	client, err := cache.NewRedisClient(context.Background(), cache.RedisOptions{
		Addr:     cfg.Cache.Redis.Addr(),
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	if err != nil {
		log.Warn("Failed to initialize Redis, search cache disabled", zap.Error(err))
		return cache.NoopCache{}
	}
	redisCache := cache.NewRedisCache(client, cfg.Cache.TTL, log.Named("cache"))
	cleanup.Add(redisCache.Close)
	return redisCache
}

// NewMirror 图片镜像，本地存储时返回nil
func NewMirror(cfg *config.Config, log *zap.Logger) (fetcher.Mirror, error) {
	if cfg.Storage.Provider != "minio" {
		return nil, nil
	}
	s := cfg.Storage.MinIO
	mirror, err := storage.NewMinIOMirror(context.Background(), storage.MinIOOptions{
		Endpoint:  s.Endpoint,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    s.Bucket,
		Region:    s.Region,
		UseSSL:    s.UseSSL,
		Prefix:    s.Prefix,
		Logger:    log.Named("minio"),
	})
	if err != nil {
		return nil, err
	}
	return mirror, nil
}

// NewEventPublisher 导入事件，未启用队列时返回nil
func NewEventPublisher(cfg *config.Config, log *zap.Logger, cleanup *Cleanup) ingest.EventPublisher {
	if !cfg.Queue.Enabled {
		return nil
	}
	producer, err := kafka.NewProducer(cfg.Queue.Kafka.Brokers, cfg.Queue.Kafka.Topic, log.Named("kafka"))
	if err != nil {
		log.Warn("Failed to initialize Kafka producer", zap.Error(err))
		return nil
	}
	cleanup.Add(producer.Close)
	return producer
}

// NewSearchEngine 检索引擎
func NewSearchEngine(st *store.Store, resultCache cache.ResultCache, log *zap.Logger) *search.Engine {
	return search.NewEngine(st, resultCache, log.Named("search"))
}
