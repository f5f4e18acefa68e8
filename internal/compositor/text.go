package compositor

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var loadFonts = sync.OnceValues(func() ([2]*opentype.Font, error) {
	var fonts [2]*opentype.Font
	for i, ttf := range [][]byte{goregular.TTF, gobold.TTF} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return fonts, fmt.Errorf("parse font: %w", err)
		}
		fonts[i] = f
	}
	return fonts, nil
})

// newFace returns a face of px pixels. Faces are not safe for concurrent use,
// so every render creates its own.
func newFace(px float64, bold bool) (font.Face, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	f := fonts[0]
	if bold {
		f = fonts[1]
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: px, DPI: 72, Hinting: font.HintingFull})
}

type vAlign int

const (
	alignTop vAlign = iota
	alignMiddle
)

// drawText draws s horizontally centered on cx. With alignTop the glyph
// box starts at y; with alignMiddle it is centered on y.
func drawText(dst draw.Image, face font.Face, src image.Image, s string, cx, y int, va vAlign) {
	d := &font.Drawer{Dst: dst, Src: src, Face: face}
	m := face.Metrics()
	w := d.MeasureString(s)

	var baseline fixed.Int26_6
	switch va {
	case alignTop:
		baseline = fixed.I(y) + m.Ascent
	case alignMiddle:
		baseline = fixed.I(y) + (m.Ascent-m.Descent)/2
	}
	d.Dot = fixed.Point26_6{X: fixed.I(cx) - w/2, Y: baseline}
	d.DrawString(s)
}
