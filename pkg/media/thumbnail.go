package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif" // decode support only; never re-encoded as a thumbnail format

	"github.com/nucleus/ingestcore/pkg/ingesterr"
)

// thumbnailSpec is one of spec.md §4.3's three fixed target boxes.
type thumbnailSpec struct {
	Variant string
	Box     int
}

var thumbnailSpecs = []thumbnailSpec{
	{Variant: "small", Box: 150},
	{Variant: "medium", Box: 300},
	{Variant: "large", Box: 600},
}

// Metadata holds the per-file attributes spec.md §4.3 requires for
// thumbable categories (width, height, color mode, transparency, EXIF
// presence) plus the always-present fields (size/sha256/mime), the
// latter of which are carried on catalog.CatalogFile directly.
type Metadata struct {
	Width           int
	Height          int
	ColorMode       string
	HasTransparency bool
	HasEXIF         bool
}

// generateDerivatives decodes data as an image, extracts its metadata,
// and writes small/medium/large derivatives into the thumbnails/ tree
// alongside canonicalPath, per spec.md §4.3.
func (p *Pipeline) generateDerivatives(ctx context.Context, canonicalPath string, data []byte) (map[string]string, Metadata, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, ingesterr.Wrap(ingesterr.Internal, "decode image for thumbnailing", err)
	}

	bounds := img.Bounds()
	meta := Metadata{
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		ColorMode:       colorModeName(img.ColorModel()),
		HasTransparency: hasTransparency(img),
		HasEXIF:         format == "jpeg" && hasEXIF(data),
	}

	thumbs := make(map[string]string, len(thumbnailSpecs))
	for _, spec := range thumbnailSpecs {
		encoded, ext, err := renderThumbnail(img, spec.Box, meta.HasTransparency)
		if err != nil {
			return nil, meta, err
		}
		key := thumbnailKey(canonicalPath, spec.Variant, ext)
		if err := p.store.Put(ctx, key, encoded); err != nil {
			return nil, meta, err
		}
		thumbs[spec.Variant] = key
	}
	return thumbs, meta, nil
}

// renderThumbnail resizes img to fit within box×box preserving aspect
// ratio, re-encoding to JPEG for opaque images or PNG for transparent
// ones per spec.md §4.3.
func renderThumbnail(img image.Image, box int, transparent bool) (encoded []byte, ext string, err error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, "", ingesterr.New(ingesterr.Internal, "source image has zero dimensions")
	}

	scale := float64(box) / float64(w)
	if hScale := float64(box) / float64(h); hScale < scale {
		scale = hScale
	}
	if scale > 1 {
		scale = 1 // never upscale beyond the source
	}
	dstW := maxInt(1, int(float64(w)*scale))
	dstH := maxInt(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if transparent {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", ingesterr.Wrap(ingesterr.Internal, "encode png thumbnail", err)
		}
		return buf.Bytes(), "png", nil
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", ingesterr.Wrap(ingesterr.Internal, "encode jpeg thumbnail", err)
	}
	return buf.Bytes(), "jpg", nil
}

// thumbnailKey mirrors canonicalPath under a parallel thumbnails/ tree,
// suffixing the variant name before the new extension.
func thumbnailKey(canonicalPath, variant, ext string) string {
	dir := path.Dir(canonicalPath)
	base := path.Base(canonicalPath)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return path.Join("thumbnails", dir, fmt.Sprintf("%s_%s.%s", base, variant, ext))
}

func colorModeName(model color.Model) string {
	switch model {
	case color.RGBAModel, color.RGBA64Model:
		return "rgba"
	case color.NRGBAModel, color.NRGBA64Model:
		return "nrgba"
	case color.GrayModel, color.Gray16Model:
		return "gray"
	case color.CMYKModel:
		return "cmyk"
	default:
		return "unknown"
	}
}

// hasTransparency reports whether any sampled pixel is not fully
// opaque. Sampling every pixel of a large image is wasteful, so this
// walks a bounded grid of sample points.
func hasTransparency(img image.Image) bool {
	bounds := img.Bounds()
	const samplesPerAxis = 32
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return false
	}
	stepX := maxInt(1, w/samplesPerAxis)
	stepY := maxInt(1, h/samplesPerAxis)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xffff {
				return true
			}
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
