package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is used when the caller passes 0 or an out-of-range value.
const DefaultJPEGQuality = 90

// JPEGEncoder encodes images to JPEG. Transparent areas are flattened onto
// Background since JPEG has no alpha channel.
type JPEGEncoder struct {
	Background color.Color
}

func (e *JPEGEncoder) Format() string    { return "jpeg" }
func (e *JPEGEncoder) MediaType() string { return "image/jpeg" }
func (e *JPEGEncoder) Extension() string { return "jpg" }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	bg := e.Background
	if bg == nil {
		bg = color.White
	}
	b := img.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), bg)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	buf.Grow(b.Dx() * b.Dy() / 4)
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
