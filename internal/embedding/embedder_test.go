package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/aihub/flora-search/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}

func TestHashingEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Damask Rose Rosaceae")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "damask rose, ROSACEAE!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestHashingEmbedderRejectsEmptyText(t *testing.T) {
	_, err := NewHashingEmbedder(0).Embed(context.Background(), "  \t ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHashingEmbedderEmbedsSymbolOnlyText(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()

	for _, text := range []string{"???", "-", "  ,, "} {
		vec, err := e.Embed(ctx, text)
		require.NoError(t, err, text)
		assert.InDelta(t, 1.0, norm(vec), 1e-5, text)
	}
}

func TestHashingEmbedderSharedTokensScoreHigher(t *testing.T) {
	e := NewHashingEmbedder(DefaultHashingDimensions)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "rose")
	rose, _ := e.Embed(ctx, "Botanical name: Rosa damascena Common name: Damask Rose")
	poppy, _ := e.Embed(ctx, "Botanical name: Meconopsis Common name: Blue Poppy")

	assert.Greater(t, dot(query, rose), dot(query, poppy))
}

func TestNewTextEmbedderFallsBackWithoutKey(t *testing.T) {
	assert.IsType(t, &NoopEmbedder{}, NewTextEmbedder("openai", " ", "", 0))
	assert.IsType(t, &HashingEmbedder{}, NewTextEmbedder("hashing", "", "", 128))
	assert.Equal(t, 1536, NewTextEmbedder("openai", "sk-test", "", 0).Dimensions())
}

func solidTensor(r, g, b float32) *imaging.Tensor {
	t := &imaging.Tensor{Width: 8, Height: 8, Channels: 3, Pix: make([]float32, 8*8*3)}
	for i := 0; i < len(t.Pix); i += 3 {
		t.Pix[i], t.Pix[i+1], t.Pix[i+2] = r, g, b
	}
	return t
}

func TestHistogramEmbedderSeparatesColours(t *testing.T) {
	e := NewHistogramEmbedder()
	ctx := context.Background()

	red, err := e.EmbedImage(ctx, solidTensor(1, 0, 0))
	require.NoError(t, err)
	red2, err := e.EmbedImage(ctx, solidTensor(0.95, 0.05, 0))
	require.NoError(t, err)
	blue, err := e.EmbedImage(ctx, solidTensor(0, 0, 1))
	require.NoError(t, err)

	assert.Len(t, red, e.Dimensions())
	assert.InDelta(t, 1.0, norm(red), 1e-5)
	assert.Greater(t, dot(red, red2), dot(red, blue))
}

func TestHistogramEmbedderRejectsEmptyTensor(t *testing.T) {
	_, err := NewHistogramEmbedder().EmbedImage(context.Background(), &imaging.Tensor{})
	assert.ErrorIs(t, err, imaging.ErrEmptyImage)
}
