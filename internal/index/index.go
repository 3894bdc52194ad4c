package index

import (
	"context"
	"errors"
)

// Document 向量索引中的一条文档
type Document struct {
	ID       string
	Document string // 文本内容（文本集合）
	URI      string // 资源路径（图片集合）
	Metadata map[string]any
	Vector   []float32
}

// Match 检索结果，切片顺序即相关性排序
type Match struct {
	ID       string
	Document string
	URI      string
	Metadata map[string]any
	Score    float64
}

// Filter 元数据等值过滤
type Filter map[string]string

// QueryRequest 向量检索请求
type QueryRequest struct {
	Vector []float32
	K      int
	Filter Filter
}

// GetRequest 按ID或过滤条件读取文档
type GetRequest struct {
	IDs    []string
	Filter Filter
	Limit  int
	Offset int
}

// ErrCollectionNotFound 集合不存在
var ErrCollectionNotFound = errors.New("collection not found")

// ErrDimensionMismatch 向量维度与集合定义不一致
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorIndex 向量索引服务抽象
//
// Get 不保证返回顺序与 IDs 一致，调用方需要自行排序。
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dimensions int) error
	Upsert(ctx context.Context, collection string, docs []Document) error
	Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error)
	Get(ctx context.Context, collection string, req GetRequest) ([]Document, error)
	Count(ctx context.Context, collection string) (int, error)
	DropCollection(ctx context.Context, collection string) error
	Ready() bool
}

// matches 判断元数据是否满足过滤条件
func (f Filter) matches(metadata map[string]any) bool {
	for key, want := range f {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		s, ok := got.(string)
		if !ok || s != want {
			return false
		}
	}
	return true
}
