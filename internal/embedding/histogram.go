package embedding

import (
	"context"
	"errors"

	"github.com/aihub/flora-search/internal/imaging"
)

const (
	histogramBins = 4 // 每通道的量化级数
	gridCells     = 4 // 空间网格边长
)

// HistogramEmbedder 颜色直方图 + 空间网格均值的图片向量化
//
// 向量 = 4×4×4 颜色直方图（64维） + 4×4 网格的RGB均值（48维），L2归一化。
type HistogramEmbedder struct{}

// NewHistogramEmbedder 创建图片向量生成器
func NewHistogramEmbedder() *HistogramEmbedder {
	return &HistogramEmbedder{}
}

func (e *HistogramEmbedder) EmbedImage(ctx context.Context, t *imaging.Tensor) ([]float32, error) {
	if t == nil || t.Width == 0 || t.Height == 0 || len(t.Pix) == 0 {
		return nil, imaging.ErrEmptyImage
	}
	if t.Channels != imaging.Channels {
		return nil, errors.New("histogram embedder expects an RGB tensor")
	}

	histSize := histogramBins * histogramBins * histogramBins
	vec := make([]float32, e.Dimensions())
	grid := vec[histSize:]
	cellCounts := make([]int, gridCells*gridCells)

	for y := 0; y < t.Height; y++ {
		gy := y * gridCells / t.Height
		for x := 0; x < t.Width; x++ {
			gx := x * gridCells / t.Width
			r, g, b := t.At(x, y, 0), t.At(x, y, 1), t.At(x, y, 2)

			bin := quantize(r)*histogramBins*histogramBins + quantize(g)*histogramBins + quantize(b)
			vec[bin]++

			cell := gy*gridCells + gx
			grid[cell*3] += r
			grid[cell*3+1] += g
			grid[cell*3+2] += b
			cellCounts[cell]++
		}
	}

	pixels := float32(t.Width * t.Height)
	for i := 0; i < histSize; i++ {
		vec[i] /= pixels
	}
	for cell, n := range cellCounts {
		if n == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			grid[cell*3+c] /= float32(n)
		}
	}
	return normalize(vec), nil
}

func (e *HistogramEmbedder) Dimensions() int {
	return histogramBins*histogramBins*histogramBins + gridCells*gridCells*3
}

func (e *HistogramEmbedder) Ready() bool {
	return true
}

func quantize(v float32) int {
	bin := int(v * histogramBins)
	if bin >= histogramBins {
		bin = histogramBins - 1
	}
	if bin < 0 {
		bin = 0
	}
	return bin
}
