// Package encoder turns rendered canvases into image bytes and data URLs.
package encoder

import (
	"image"

	"github.com/AnyUserName/apix-cli/internal/dataurl"
)

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format name ("png", "jpeg").
	Format() string

	// MediaType returns the MIME type written into data URLs.
	MediaType() string

	// Encode converts the image to bytes at the given quality (1-100).
	// Lossless encoders ignore quality.
	Encode(img image.Image, quality int) ([]byte, error)

	// Extension returns the file extension without dot.
	Extension() string
}

// DataURL encodes img with enc and wraps the result in a base64 data URL.
func DataURL(enc Encoder, img image.Image, quality int) (string, error) {
	data, err := enc.Encode(img, quality)
	if err != nil {
		return "", err
	}
	return dataurl.Encode(enc.MediaType(), data), nil
}
