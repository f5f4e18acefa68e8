package compositor

import (
	"fmt"
	"image"
	"math"
)

// Cell is where one source image and its caption band land on the canvas.
type Cell struct {
	Image image.Rectangle
	Label image.Rectangle // empty when the item has no caption band
}

// Plan is the result of the sizing pass. All geometry is final before any
// pixel is drawn.
type Plan struct {
	Width, Height int
	Padding       int
	TitleBand     int
	LabelBand     int
	Columns, Rows int
	Cells         []Cell
}

// Bounds returns the canvas rectangle.
func (p Plan) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

// Compute lays out images of the given sizes. labeled[i] reports whether
// item i has a non-empty caption; it may be nil.
func Compute(sizes []image.Point, labeled []bool, spec Spec) (Plan, error) {
	spec = spec.normalized()
	if len(sizes) == 0 {
		return Plan{}, ErrNoImages
	}
	hasLabel := func(i int) bool {
		return spec.Labels.Enabled && i < len(labeled) && labeled[i]
	}

	p := Plan{Padding: spec.Gap}
	if spec.MainTitle != "" || spec.Labels.Enabled {
		p.Padding = max(20, spec.Gap*2)
	}
	if spec.MainTitle != "" {
		p.TitleBand = spec.Labels.BaseFontSize * 2
	}
	if spec.Labels.Enabled {
		p.LabelBand = int(float64(spec.Labels.BaseFontSize) * 1.5)
	}

	gap, pad := spec.Gap, p.Padding
	top := pad + p.TitleBand
	p.Cells = make([]Cell, len(sizes))

	switch spec.Layout {
	case LayoutRow:
		p.Columns, p.Rows = len(sizes), 1
		x, maxH := pad, 0
		for i, s := range sizes {
			p.Cells[i].Image = image.Rect(x, top, x+s.X, top+s.Y)
			if hasLabel(i) {
				p.Cells[i].Label = image.Rect(x, top+s.Y, x+s.X, top+s.Y+p.LabelBand)
			}
			x += s.X + gap
			maxH = max(maxH, s.Y)
		}
		p.Width = x - gap + pad
		p.Height = maxH + 2*pad + p.TitleBand + p.LabelBand

	case LayoutColumn:
		p.Columns, p.Rows = 1, len(sizes)
		maxW := 0
		for _, s := range sizes {
			maxW = max(maxW, s.X)
		}
		p.Width = maxW + 2*pad
		y := top
		for i, s := range sizes {
			p.Cells[i].Image = image.Rect(pad, y, pad+s.X, y+s.Y)
			y += s.Y
			if hasLabel(i) {
				p.Cells[i].Label = image.Rect(pad, y, p.Width-pad, y+p.LabelBand)
				y += p.LabelBand
			}
			y += gap
		}
		p.Height = y - gap + pad

	case LayoutGrid:
		n := len(sizes)
		p.Columns = int(math.Ceil(math.Sqrt(float64(n))))
		p.Rows = (n + p.Columns - 1) / p.Columns
		colW := make([]int, p.Columns)
		rowH := make([]int, p.Rows)
		for i, s := range sizes {
			colW[i%p.Columns] = max(colW[i%p.Columns], s.X)
			rowH[i/p.Columns] = max(rowH[i/p.Columns], s.Y)
		}
		colX := make([]int, p.Columns)
		x := pad
		for c, w := range colW {
			colX[c] = x
			x += w + gap
		}
		rowY := make([]int, p.Rows)
		y := top
		for r, h := range rowH {
			rowY[r] = y
			y += h + gap
		}
		for i, s := range sizes {
			x0, y0 := colX[i%p.Columns], rowY[i/p.Columns]
			p.Cells[i].Image = image.Rect(x0, y0, x0+s.X, y0+s.Y)
		}
		p.Width = x - gap + pad
		p.Height = y - gap + pad

	default:
		return Plan{}, fmt.Errorf("unknown layout %q", spec.Layout)
	}
	return p, nil
}
