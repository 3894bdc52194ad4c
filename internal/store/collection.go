package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aihub/flora-search/internal/embedding"
	"github.com/aihub/flora-search/internal/imaging"
	"github.com/aihub/flora-search/internal/index"
)

// 默认集合名
const (
	TextCollectionName  = "flora_text"
	ImageCollectionName = "flora_images"
)

// ImageLoader 按URI读取图片为张量
type ImageLoader func(uri string) (*imaging.Tensor, error)

type collection struct {
	name  string
	index index.VectorIndex
}

func newCollection(ctx context.Context, idx index.VectorIndex, name string, dimensions int) (collection, error) {
	if dimensions <= 0 {
		return collection{}, fmt.Errorf("collection %s: embedder reports %d dimensions", name, dimensions)
	}
	if err := idx.EnsureCollection(ctx, name, dimensions); err != nil {
		return collection{}, storeErr(name, "create", err)
	}
	return collection{name: name, index: idx}, nil
}

// Name 集合名
func (c collection) Name() string {
	return c.name
}

// Count 文档数量
func (c collection) Count(ctx context.Context) (int, error) {
	n, err := c.index.Count(ctx, c.name)
	return n, storeErr(c.name, "count", err)
}

// Delete 删除整个集合
func (c collection) Delete(ctx context.Context) error {
	return storeErr(c.name, "delete", c.index.DropCollection(ctx, c.name))
}

// Get 透传的按ID/过滤/分页读取
func (c collection) Get(ctx context.Context, req index.GetRequest) ([]index.Document, error) {
	docs, err := c.index.Get(ctx, c.name, req)
	return docs, storeErr(c.name, "get", err)
}

// TextCollection 存储花卉文本及文本向量
type TextCollection struct {
	collection
	embedder embedding.TextEmbedder
}

// NewTextCollection 创建文本集合
func NewTextCollection(ctx context.Context, idx index.VectorIndex, name string, embedder embedding.TextEmbedder) (*TextCollection, error) {
	c, err := newCollection(ctx, idx, name, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	return &TextCollection{collection: c, embedder: embedder}, nil
}

// AddDocument 写入一条文本文档
func (c *TextCollection) AddDocument(ctx context.Context, id, text string, metadata map[string]any) error {
	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return storeErr(c.name, "embed", err)
	}
	return storeErr(c.name, "upsert", c.index.Upsert(ctx, c.name, []index.Document{{
		ID:       id,
		Document: text,
		Metadata: metadata,
		Vector:   vector,
	}}))
}

// Query 文本检索
func (c *TextCollection) Query(ctx context.Context, text string, k int, filter index.Filter) ([]index.Match, error) {
	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, storeErr(c.name, "embed", err)
	}
	matches, err := c.index.Query(ctx, c.name, index.QueryRequest{Vector: vector, K: k, Filter: filter})
	return matches, storeErr(c.name, "query", err)
}

// ImageCollection 存储花卉图片路径及图片向量
type ImageCollection struct {
	collection
	embedder embedding.ImageEmbedder
	loader   ImageLoader
}

// NewImageCollection 创建图片集合，loader为空时从本地文件读取
func NewImageCollection(ctx context.Context, idx index.VectorIndex, name string, embedder embedding.ImageEmbedder, loader ImageLoader) (*ImageCollection, error) {
	if loader == nil {
		loader = imaging.LoadFile
	}
	c, err := newCollection(ctx, idx, name, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	return &ImageCollection{collection: c, embedder: embedder, loader: loader}, nil
}

// AddDocument 写入一条图片文档
func (c *ImageCollection) AddDocument(ctx context.Context, id, uri string, metadata map[string]any) error {
	return c.AddDocumentsBatch(ctx, []string{id}, []string{uri}, []map[string]any{metadata})
}

// AddDocumentsBatch 批量写入图片文档：先全部向量化，再一次性写入
func (c *ImageCollection) AddDocumentsBatch(ctx context.Context, ids, uris []string, metadatas []map[string]any) error {
	if len(ids) != len(uris) || len(ids) != len(metadatas) {
		return storeErr(c.name, "upsert", fmt.Errorf("batch length mismatch: %d ids, %d uris, %d metadatas", len(ids), len(uris), len(metadatas)))
	}
	if len(ids) == 0 {
		return nil
	}

	docs := make([]index.Document, 0, len(ids))
	for i := range ids {
		tensor, err := c.loader(uris[i])
		if err != nil {
			return storeErr(c.name, "load", err)
		}
		vector, err := c.embedder.EmbedImage(ctx, tensor)
		if err != nil {
			return storeErr(c.name, "embed", err)
		}
		docs = append(docs, index.Document{
			ID:       ids[i],
			URI:      uris[i],
			Metadata: metadatas[i],
			Vector:   vector,
		})
	}
	return storeErr(c.name, "upsert", c.index.Upsert(ctx, c.name, docs))
}

// Query 以图搜图，结果带元数据与URI
func (c *ImageCollection) Query(ctx context.Context, tensor *imaging.Tensor, k int, filter index.Filter) ([]index.Match, error) {
	if tensor == nil {
		return nil, storeErr(c.name, "query", errors.New("query image is nil"))
	}
	vector, err := c.embedder.EmbedImage(ctx, tensor)
	if err != nil {
		return nil, storeErr(c.name, "embed", err)
	}
	matches, err := c.index.Query(ctx, c.name, index.QueryRequest{Vector: vector, K: k, Filter: filter})
	return matches, storeErr(c.name, "query", err)
}
