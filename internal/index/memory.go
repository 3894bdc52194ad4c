package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex 进程内向量索引，余弦相似度暴力检索
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimensions int
	docs       map[string]Document
}

// NewMemoryIndex 创建内存向量索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryIndex) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.collections[name]; ok {
		if existing.dimensions != dimensions {
			return fmt.Errorf("collection %s has %d dimensions, requested %d: %w",
				name, existing.dimensions, dimensions, ErrDimensionMismatch)
		}
		return nil
	}
	m.collections[name] = &memoryCollection{dimensions: dimensions, docs: make(map[string]Document)}
	return nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, collection string, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("upsert into %s: %w", collection, ErrCollectionNotFound)
	}
	// 先整体校验，保证批量写入要么全部成功要么全部失败
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("upsert into %s: document id is empty", collection)
		}
		if len(doc.Vector) != c.dimensions {
			return fmt.Errorf("upsert %s into %s: got %d dimensions, want %d: %w",
				doc.ID, collection, len(doc.Vector), c.dimensions, ErrDimensionMismatch)
		}
	}
	for _, doc := range docs {
		c.docs[doc.ID] = cloneDocument(doc)
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error) {
	if len(req.Vector) == 0 {
		return nil, nil
	}
	if req.K <= 0 {
		req.K = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("query %s: %w", collection, ErrCollectionNotFound)
	}
	if len(req.Vector) != c.dimensions {
		return nil, fmt.Errorf("query %s: got %d dimensions, want %d: %w",
			collection, len(req.Vector), c.dimensions, ErrDimensionMismatch)
	}

	queryNorm := vectorNorm(req.Vector)
	if queryNorm == 0 {
		return nil, fmt.Errorf("query embedding norm is zero")
	}

	results := make([]Match, 0, len(c.docs))
	for _, doc := range c.docs {
		if !req.Filter.matches(doc.Metadata) {
			continue
		}
		results = append(results, Match{
			ID:       doc.ID,
			Document: doc.Document,
			URI:      doc.URI,
			Metadata: cloneMetadata(doc.Metadata),
			Score:    cosineSimilarity(req.Vector, doc.Vector, queryNorm),
		})
	}

	sortMatchesByScore(results)
	if len(results) > req.K {
		results = results[:req.K]
	}
	return results, nil
}

// Get 返回顺序取决于map遍历，不与请求的IDs对应
func (m *MemoryIndex) Get(ctx context.Context, collection string, req GetRequest) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("get from %s: %w", collection, ErrCollectionNotFound)
	}

	var candidates []Document
	if len(req.IDs) > 0 {
		wanted := make(map[string]struct{}, len(req.IDs))
		for _, id := range req.IDs {
			wanted[id] = struct{}{}
		}
		for id, doc := range c.docs {
			if _, ok := wanted[id]; ok && req.Filter.matches(doc.Metadata) {
				candidates = append(candidates, cloneDocument(doc))
			}
		}
	} else {
		for _, doc := range c.docs {
			if req.Filter.matches(doc.Metadata) {
				candidates = append(candidates, cloneDocument(doc))
			}
		}
		// 分页需要稳定顺序
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	}

	if req.Offset > 0 {
		if req.Offset >= len(candidates) {
			return []Document{}, nil
		}
		candidates = candidates[req.Offset:]
	}
	if req.Limit > 0 && len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}
	return candidates, nil
}

func (m *MemoryIndex) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("count %s: %w", collection, ErrCollectionNotFound)
	}
	return len(c.docs), nil
}

func (m *MemoryIndex) DropCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

func (m *MemoryIndex) Ready() bool {
	return m != nil
}

func cloneDocument(doc Document) Document {
	vec := make([]float32, len(doc.Vector))
	copy(vec, doc.Vector)
	doc.Vector = vec
	doc.Metadata = cloneMetadata(doc.Metadata)
	return doc
}

func cloneMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func sortMatchesByScore(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32, normA float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot float64
	var normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (normA * math.Sqrt(normB))
}
