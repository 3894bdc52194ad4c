// Package imaging decodes query and catalogue images into fixed-size RGB pixel tensors.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
)

// DefaultEdge 张量的默认边长（像素）
const DefaultEdge = 64

// Channels RGB通道数
const Channels = 3

// Tensor 行优先的RGB像素张量，取值范围0..1
type Tensor struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32
}

// At 返回(x, y)处第c个通道的值
func (t *Tensor) At(x, y, c int) float32 {
	return t.Pix[(y*t.Width+x)*t.Channels+c]
}

// ErrEmptyImage 输入为空
var ErrEmptyImage = errors.New("image payload is empty")

// Decode 解码JPEG/PNG并缩放为DefaultEdge×DefaultEdge的张量
func Decode(r io.Reader) (*Tensor, error) {
	return DecodeSize(r, DefaultEdge)
}

// DecodeBytes Decode的字节切片版本
func DecodeBytes(data []byte) (*Tensor, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return Decode(bytes.NewReader(data))
}

// DecodeSize 解码并缩放为edge×edge的张量
func DecodeSize(r io.Reader, edge int) (*Tensor, error) {
	if edge <= 0 {
		edge = DefaultEdge
	}
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("decode %s image: %w", format, ErrEmptyImage)
	}

	dst := image.NewRGBA(image.Rect(0, 0, edge, edge))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	return FromRGBA(dst), nil
}

// FromRGBA 将RGBA图像转换为张量，丢弃alpha通道
func FromRGBA(img *image.RGBA) *Tensor {
	b := img.Bounds()
	t := &Tensor{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: Channels,
		Pix:      make([]float32, b.Dx()*b.Dy()*Channels),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := img.PixOffset(x, y)
			t.Pix[i] = float32(img.Pix[off]) / 255
			t.Pix[i+1] = float32(img.Pix[off+1]) / 255
			t.Pix[i+2] = float32(img.Pix[off+2]) / 255
			i += Channels
		}
	}
	return t
}

// LoadFile 从本地路径读取图片为张量
func LoadFile(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	return t, nil
}
