// Package compositor combines several images into one canvas laid out as a
// row, a column or a near-square grid, with an optional title and caption
// bands.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/AnyUserName/apix-cli/internal/encoder"
	"github.com/AnyUserName/apix-cli/internal/loader"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"
)

var ErrNoImages = errors.New("compositor: no images to combine")

// Compositor loads, lays out and rasterizes images.
type Compositor struct {
	loader   loader.Loader
	encoders *encoder.Registry
	logger   *slog.Logger
}

// New creates a Compositor. A nil logger means slog.Default().
func New(l loader.Loader, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{loader: l, encoders: encoder.NewRegistry(), logger: logger}
}

// Combine renders items according to spec and returns the canvas as a data
// URL (PNG unless spec.Format says otherwise).
func (c *Compositor) Combine(ctx context.Context, items []Item, spec Spec) (string, error) {
	enc, err := c.encoders.Lookup(spec.Format)
	if err != nil {
		return "", err
	}
	canvas, err := c.CombineImage(ctx, items, spec)
	if err != nil {
		return "", err
	}
	return encoder.DataURL(enc, canvas, spec.Quality)
}

// CombineImage is Combine without the final encoding step.
func (c *Compositor) CombineImage(ctx context.Context, items []Item, spec Spec) (*image.NRGBA, error) {
	if len(items) == 0 {
		return nil, ErrNoImages
	}
	images, err := c.loadAll(ctx, items)
	if err != nil {
		return nil, err
	}

	sizes := make([]image.Point, len(images))
	labeled := make([]bool, len(items))
	for i, img := range images {
		sizes[i] = img.Bounds().Size()
		labeled[i] = items[i].Label != ""
	}
	plan, err := Compute(sizes, labeled, spec)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("combine layout",
		"layout", spec.normalized().Layout, "items", len(items),
		"width", plan.Width, "height", plan.Height)

	return Render(plan, images, items, spec)
}

// loadAll fetches every image concurrently and returns only once all of
// them are decoded. The first failure aborts the whole composite.
func (c *Compositor) loadAll(ctx context.Context, items []Item) ([]image.Image, error) {
	images := make([]image.Image, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			img, err := c.loader.Load(gctx, it.URL)
			if err != nil {
				return fmt.Errorf("failed to load image: %s: %w", shortSource(it.URL), err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func shortSource(u string) string {
	if len(u) <= 50 {
		return u
	}
	return u[:50] + "..."
}

// Render draws images into a canvas sized by plan: background first, then
// the title, then each image with its caption band.
func Render(plan Plan, images []image.Image, items []Item, spec Spec) (*image.NRGBA, error) {
	spec = spec.normalized()
	if len(images) != len(plan.Cells) {
		return nil, fmt.Errorf("plan has %d cells for %d images", len(plan.Cells), len(images))
	}

	bg := color.NRGBA{}
	if spec.BackgroundColor != "" {
		var err error
		if bg, err = ParseColor(spec.BackgroundColor); err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
	}
	fontColor, err := ParseColor(spec.Labels.FontColor)
	if err != nil {
		return nil, fmt.Errorf("label font color: %w", err)
	}
	bandColor, err := ParseColor(spec.Labels.BackgroundColor)
	if err != nil {
		return nil, fmt.Errorf("label background: %w", err)
	}

	canvas := imaging.New(plan.Width, plan.Height, bg)
	textSrc := image.NewUniform(fontColor)

	if spec.MainTitle != "" {
		face, err := newFace(float64(spec.Labels.BaseFontSize)*1.5, true)
		if err != nil {
			return nil, err
		}
		drawText(canvas, face, textSrc, spec.MainTitle, plan.Width/2, plan.Padding, alignTop)
		face.Close()
	}

	var labelFace font.Face
	for i, img := range images {
		cell := plan.Cells[i]
		draw.Draw(canvas, cell.Image, img, img.Bounds().Min, draw.Over)

		if cell.Label.Empty() || items[i].Label == "" {
			continue
		}
		draw.Draw(canvas, cell.Label, image.NewUniform(bandColor), image.Point{}, draw.Over)
		if labelFace == nil {
			f, err := newFace(float64(spec.Labels.BaseFontSize), false)
			if err != nil {
				return nil, err
			}
			labelFace = f
			defer f.Close()
		}
		mid := cell.Label.Min.Y + cell.Label.Dy()/2
		cx := cell.Label.Min.X + cell.Label.Dx()/2
		drawText(canvas, labelFace, textSrc, items[i].Label, cx, mid, alignMiddle)
	}
	return canvas, nil
}
