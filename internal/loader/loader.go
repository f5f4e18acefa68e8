// Package loader turns asset URLs into decoded images.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/AnyUserName/apix-cli/internal/fetch"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Loader resolves a URL to a fully decoded image.
type Loader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// Fetcher is the byte source of a Fetching loader. *fetch.Fetcher
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Fetching loads images through a Fetcher.
type Fetching struct {
	Fetcher Fetcher
}

// New returns a Loader backed by f.
func New(f Fetcher) *Fetching {
	return &Fetching{Fetcher: f}
}

// Load fetches url and decodes it, applying any EXIF orientation.
func (l *Fetching) Load(ctx context.Context, url string) (image.Image, error) {
	res, err := l.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(res.Body), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// Func adapts a function to Loader.
type Func func(ctx context.Context, url string) (image.Image, error)

func (f Func) Load(ctx context.Context, url string) (image.Image, error) { return f(ctx, url) }
