package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aihub/flora-search/internal/imaging"
	openai "github.com/sashabaranov/go-openai"
)

// TextEmbedder 定义文本向量化接口
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// ImageEmbedder 定义图片向量化接口
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, tensor *imaging.Tensor) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// ErrEmptyText 待向量化文本为空
var ErrEmptyText = errors.New("text is empty")

// NoopEmbedder 默认占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding provider not configured")
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    sync.Mutex
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器，未配置key时返回NoopEmbedder
func NewOpenAIEmbedder(apiKey, model string) TextEmbedder {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	dims, ok := embeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: dims,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if e.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	e.limiter.Lock()
	defer e.limiter.Unlock()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response empty")
	}

	embedding := resp.Data[0].Embedding
	result := make([]float32, len(embedding))
	copy(result, embedding)
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}

// NewTextEmbedder 根据配置选择文本向量化实现
func NewTextEmbedder(provider, apiKey, model string, dimensions int) TextEmbedder {
	switch strings.ToLower(provider) {
	case "openai":
		return NewOpenAIEmbedder(apiKey, model)
	default:
		return NewHashingEmbedder(dimensions)
	}
}
