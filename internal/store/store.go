package store

import (
	"context"

	"github.com/aihub/flora-search/internal/embedding"
	"github.com/aihub/flora-search/internal/imaging"
	"github.com/aihub/flora-search/internal/index"
)

// Options 双集合存储参数
type Options struct {
	TextCollection  string
	ImageCollection string
	ImageLoader     ImageLoader
}

// Store 文本集合与图片集合的组合
type Store struct {
	Text   *TextCollection
	Images *ImageCollection
}

// New 在同一个向量索引上创建文本与图片集合
func New(ctx context.Context, idx index.VectorIndex, text embedding.TextEmbedder, image embedding.ImageEmbedder, opts Options) (*Store, error) {
	if opts.TextCollection == "" {
		opts.TextCollection = TextCollectionName
	}
	if opts.ImageCollection == "" {
		opts.ImageCollection = ImageCollectionName
	}

	textColl, err := NewTextCollection(ctx, idx, opts.TextCollection, text)
	if err != nil {
		return nil, err
	}
	imageColl, err := NewImageCollection(ctx, idx, opts.ImageCollection, image, opts.ImageLoader)
	if err != nil {
		return nil, err
	}
	return &Store{Text: textColl, Images: imageColl}, nil
}

func (s *Store) AddTextDocument(ctx context.Context, id, text string, metadata map[string]any) error {
	return s.Text.AddDocument(ctx, id, text, metadata)
}

func (s *Store) AddImageDocument(ctx context.Context, id, uri string, metadata map[string]any) error {
	return s.Images.AddDocument(ctx, id, uri, metadata)
}

func (s *Store) AddImageDocumentsBatch(ctx context.Context, ids, uris []string, metadatas []map[string]any) error {
	return s.Images.AddDocumentsBatch(ctx, ids, uris, metadatas)
}

func (s *Store) QueryText(ctx context.Context, text string, k int, filter index.Filter) ([]index.Match, error) {
	return s.Text.Query(ctx, text, k, filter)
}

func (s *Store) QueryImage(ctx context.Context, tensor *imaging.Tensor, k int, filter index.Filter) ([]index.Match, error) {
	return s.Images.Query(ctx, tensor, k, filter)
}

// GetByIDs 从文本集合按ID读取，返回顺序不保证
func (s *Store) GetByIDs(ctx context.Context, ids []string, limit int) ([]index.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Text.Get(ctx, index.GetRequest{IDs: ids, Limit: limit})
}

// Stats 两个集合的文档数
type Stats struct {
	Text   int `json:"text"`
	Images int `json:"images"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	textCount, err := s.Text.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	imageCount, err := s.Images.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Text: textCount, Images: imageCount}, nil
}
