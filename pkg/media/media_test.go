package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRenderThumbnailPreservesAspectRatio(t *testing.T) {
	img := solidImage(800, 400, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	encoded, ext, err := renderThumbnail(img, 300, false)
	require.NoError(t, err)
	require.Equal(t, "jpg", ext)

	decoded, err := jpeg.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	bounds := decoded.Bounds()
	require.Equal(t, 300, bounds.Dx())
	require.Equal(t, 150, bounds.Dy())
}

func TestRenderThumbnailNeverUpscales(t *testing.T) {
	img := solidImage(50, 50, color.NRGBA{R: 1, G: 1, B: 1, A: 255})
	encoded, _, err := renderThumbnail(img, 600, false)
	require.NoError(t, err)
	decoded, _, err := image.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, 50, decoded.Bounds().Dx())
	require.Equal(t, 50, decoded.Bounds().Dy())
}

func TestRenderThumbnailTransparentUsesPNG(t *testing.T) {
	img := solidImage(100, 100, color.NRGBA{R: 10, G: 10, B: 10, A: 128})
	_, ext, err := renderThumbnail(img, 50, true)
	require.NoError(t, err)
	require.Equal(t, "png", ext)
}

func TestHasTransparencyDetectsPartialAlpha(t *testing.T) {
	opaque := solidImage(40, 40, color.NRGBA{R: 1, G: 1, B: 1, A: 255})
	require.False(t, hasTransparency(opaque))

	transparent := solidImage(40, 40, color.NRGBA{R: 1, G: 1, B: 1, A: 0})
	require.True(t, hasTransparency(transparent))
}

func TestThumbnailKeyMirrorsCanonicalPathUnderThumbnailsTree(t *testing.T) {
	key := thumbnailKey("photos/2026/07/29/tenant-a_20260729_101500_abc123.jpg", "small", "jpg")
	require.Equal(t, "thumbnails/photos/2026/07/29/tenant-a_20260729_101500_abc123_small.jpg", key)
}

func TestHasEXIFDetectsAPP1Segment(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8}) // SOI
	buf.Write([]byte{0xFF, 0xE1}) // APP1 marker
	payload := append([]byte("Exif\x00\x00"), make([]byte, 8)...)
	segLen := len(payload) + 2
	buf.Write([]byte{byte(segLen >> 8), byte(segLen & 0xff)})
	buf.Write(payload)
	buf.Write([]byte{0xFF, 0xDA}) // start of scan

	require.True(t, hasEXIF(buf.Bytes()))
}

func TestHasEXIFReturnsFalseWithoutAPP1(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	buf.Write([]byte{0xFF, 0xDA})
	require.False(t, hasEXIF(buf.Bytes()))
}

func TestColorModeNameRecognizesStandardModels(t *testing.T) {
	require.Equal(t, "nrgba", colorModeName(color.NRGBAModel))
	require.Equal(t, "gray", colorModeName(color.GrayModel))
	require.Equal(t, "unknown", colorModeName(color.Alpha16Model))
}
