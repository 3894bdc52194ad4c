package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, c color.RGBA, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeBytesResizesToDefaultEdge(t *testing.T) {
	data := solidPNG(t, color.RGBA{R: 255, A: 255}, 10, 20)

	tensor, err := DecodeBytes(data)
	require.NoError(t, err)

	assert.Equal(t, DefaultEdge, tensor.Width)
	assert.Equal(t, DefaultEdge, tensor.Height)
	assert.Equal(t, Channels, tensor.Channels)
	assert.Len(t, tensor.Pix, DefaultEdge*DefaultEdge*Channels)
	assert.InDelta(t, 1.0, tensor.At(5, 5, 0), 0.01)
	assert.InDelta(t, 0.0, tensor.At(5, 5, 1), 0.01)
}

func TestDecodeBytesRejectsEmptyAndGarbage(t *testing.T) {
	_, err := DecodeBytes(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = DecodeBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "green.png")
	require.NoError(t, os.WriteFile(path, solidPNG(t, color.RGBA{G: 255, A: 255}, 8, 8), 0o644))

	tensor, err := LoadFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tensor.At(0, 0, 1), 0.01)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
