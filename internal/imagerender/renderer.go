package imagerender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/local/pagerender/internal/document"
)

// Mode selects the post-processing applied to a rasterized page.
type Mode int

const (
	// ModeDocument keeps the page aspect at a fixed output height.
	ModeDocument Mode = iota
	// ModeSlide center-crops to the slide aspect and resizes to a fixed frame.
	ModeSlide
)

// Output holds the target sizes for both modes.
type Output struct {
	DocumentHeight int
	SlideWidth     int
	SlideHeight    int
}

// DefaultOutput is 720px tall documents and 2560x1440 slides.
var DefaultOutput = Output{DocumentHeight: 720, SlideWidth: 2560, SlideHeight: 1440}

func (o Output) withDefaults() Output {
	if o.DocumentHeight <= 0 {
		o.DocumentHeight = DefaultOutput.DocumentHeight
	}
	if o.SlideWidth <= 0 || o.SlideHeight <= 0 {
		o.SlideWidth, o.SlideHeight = DefaultOutput.SlideWidth, DefaultOutput.SlideHeight
	}
	return o
}

// Normalize applies the mode's resize rules. A page too small to survive the
// slide crop is an error instead of a blank frame.
func (o Output) Normalize(src image.Image, mode Mode) (image.Image, error) {
	o = o.withDefaults()
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("rasterized page is empty")
	}
	if mode == ModeSlide {
		crop := CropToAspect(src, o.SlideWidth, o.SlideHeight)
		if crop.Bounds().Empty() {
			b := src.Bounds()
			return nil, fmt.Errorf("%dx%d page is too small to crop to %d:%d", b.Dx(), b.Dy(), o.SlideWidth, o.SlideHeight)
		}
		return resize(crop, o.SlideWidth, o.SlideHeight), nil
	}
	return NormalizeDocument(src, o.DocumentHeight), nil
}

// NormalizeDocument scales src to the given height, preserving aspect.
func NormalizeDocument(src image.Image, height int) image.Image {
	b := src.Bounds()
	if b.Dy() == 0 {
		return src
	}
	width := int(math.Round(float64(b.Dx()) * float64(height) / float64(b.Dy())))
	return resize(src, max(width, 1), height)
}

// NormalizeSlide crops src to width:height around its center and scales it to exactly that size.
func NormalizeSlide(src image.Image, width, height int) image.Image {
	return resize(CropToAspect(src, width, height), width, height)
}

// CropToAspect trims the long axis symmetrically so src has the aspect aw:ah.
func CropToAspect(src image.Image, aw, ah int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var rect image.Rectangle
	switch {
	case w*ah > h*aw:
		nw := h * aw / ah
		x0 := b.Min.X + (w-nw)/2
		rect = image.Rect(x0, b.Min.Y, x0+nw, b.Max.Y)
	case w*ah < h*aw:
		nh := w * ah / aw
		y0 := b.Min.Y + (h-nh)/2
		rect = image.Rect(b.Min.X, y0, b.Max.X, y0+nh)
	default:
		return src
	}
	if sub, ok := src.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, rect.Min, xdraw.Src)
	return dst
}

func resize(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// DimensionsOf reports size and orientation of img.
func DimensionsOf(img image.Image) document.Dimensions {
	b := img.Bounds()
	return document.Dimensions{Width: b.Dx(), Height: b.Dy(), Orientation: document.OrientationOf(b.Dx(), b.Dy())}
}

// EncodePNG encodes with maximum compression.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeToBase64 converts binary data to base64 string
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURL wraps base64 PNG data for inline use.
func DataURL(b64 string) string {
	return "data:image/png;base64," + b64
}
