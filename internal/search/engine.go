// Package search 花卉文本检索与以图搜图
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aihub/flora-search/internal/cache"
	"github.com/aihub/flora-search/internal/flora"
	"github.com/aihub/flora-search/internal/imaging"
	"github.com/aihub/flora-search/internal/index"
	"github.com/aihub/flora-search/internal/metrics"
)

// DefaultK 默认返回条数
const DefaultK = 20

// ErrEmptyQuery 既无文本也无图片
var ErrEmptyQuery = errors.New("query has neither text nor image")

// SearchError 检索失败
type SearchError struct {
	Mode  string
	Cause error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s search failed: %v", e.Mode, e.Cause)
}

func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Backend 双集合存储上的检索操作
type Backend interface {
	QueryText(ctx context.Context, text string, k int, filter index.Filter) ([]index.Match, error)
	QueryImage(ctx context.Context, tensor *imaging.Tensor, k int, filter index.Filter) ([]index.Match, error)
	GetByIDs(ctx context.Context, ids []string, limit int) ([]index.Document, error)
}

// Query 检索请求，Image非空时优先以图搜图
type Query struct {
	Text   string
	Image  []byte
	K      int
	Filter index.Filter
}

// Mode 检索模式
func (q Query) Mode() string {
	if len(q.Image) > 0 {
		return metrics.ModeImage
	}
	return metrics.ModeText
}

// Engine 检索引擎
type Engine struct {
	backend Backend
	cache   cache.ResultCache
	logger  *zap.Logger
}

// NewEngine 创建检索引擎，resultCache为空时不缓存
func NewEngine(backend Backend, resultCache cache.ResultCache, logger *zap.Logger) *Engine {
	if resultCache == nil {
		resultCache = cache.NoopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{backend: backend, cache: resultCache, logger: logger}
}

// Search 返回按相关度排序的花卉记录
func (e *Engine) Search(ctx context.Context, q Query) (flowers []flora.Flower, err error) {
	if len(q.Image) == 0 && q.Text == "" {
		return nil, ErrEmptyQuery
	}
	if q.K <= 0 {
		q.K = DefaultK
	}

	mode := q.Mode()
	started := time.Now()
	defer func() { metrics.ObserveSearch(mode, started, err) }()

	key := cacheKey(q)
	if cached, ok := e.cache.Get(ctx, key); ok {
		e.logger.Debug("Search cache hit", zap.String("mode", mode))
		return cached, nil
	}

	if mode == metrics.ModeImage {
		flowers, err = e.searchImage(ctx, q)
	} else {
		flowers, err = e.searchText(ctx, q)
	}
	if err != nil {
		return nil, &SearchError{Mode: mode, Cause: err}
	}

	e.cache.Set(ctx, key, flowers)
	return flowers, nil
}

func cacheKey(q Query) string {
	if len(q.Image) > 0 {
		return cache.ImageKey(q.Image, q.K, q.Filter)
	}
	return cache.TextKey(q.Text, q.K, q.Filter)
}

func (e *Engine) searchText(ctx context.Context, q Query) ([]flora.Flower, error) {
	matches, err := e.backend.QueryText(ctx, q.Text, q.K, q.Filter)
	if err != nil {
		return nil, err
	}
	flowers := make([]flora.Flower, 0, len(matches))
	for _, m := range matches {
		flowers = append(flowers, flora.FromMetadata(m.Metadata))
	}
	return flowers, nil
}

func (e *Engine) searchImage(ctx context.Context, q Query) ([]flora.Flower, error) {
	tensor, err := imaging.DecodeBytes(q.Image)
	if err != nil {
		return nil, fmt.Errorf("decode query image: %w", err)
	}

	matches, err := e.backend.QueryImage(ctx, tensor, q.K, q.Filter)
	if err != nil {
		return nil, err
	}

	ranked := make([]string, 0, len(matches))
	for _, m := range matches {
		id, ok := m.Metadata[flora.KeyFloraID].(string)
		if !ok || id == "" {
			e.logger.Warn("Image match without flora id", zap.String("image_id", m.ID))
			continue
		}
		ranked = append(ranked, id)
	}
	ids := DedupePreserveOrder(ranked)
	if len(ids) == 0 {
		return []flora.Flower{}, nil
	}

	docs, err := e.backend.GetByIDs(ctx, ids, len(ids))
	if err != nil {
		return nil, err
	}
	return OrderByRank(ids, docs), nil
}

// DedupePreserveOrder 去重并保留首次出现的位置
func DedupePreserveOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// OrderByRank 按ids的顺序重排无序的文档，找不到的ID跳过
func OrderByRank(ids []string, docs []index.Document) []flora.Flower {
	byID := make(map[string]index.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	flowers := make([]flora.Flower, 0, len(ids))
	for _, id := range ids {
		doc, ok := byID[id]
		if !ok {
			continue
		}
		flowers = append(flowers, flora.FromMetadata(doc.Metadata))
	}
	return flowers
}
