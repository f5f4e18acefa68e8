package compositor

import (
	"fmt"
	"strings"
)

// Layout selects how items are arranged on the canvas.
type Layout string

const (
	LayoutRow    Layout = "row"    // single row, left to right
	LayoutColumn Layout = "column" // single column, top to bottom
	LayoutGrid   Layout = "grid"   // near-square grid, ceil(sqrt(n)) columns
)

// ParseLayout accepts the canonical names and the editor's aliases
// ("horizontal", "vertical", "smart-grid").
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "row", "horizontal":
		return LayoutRow, nil
	case "column", "vertical":
		return LayoutColumn, nil
	case "grid", "smart-grid", "":
		return LayoutGrid, nil
	}
	return "", fmt.Errorf("unknown layout %q", s)
}

// UnmarshalText lets JSON and YAML documents use the aliases.
func (l *Layout) UnmarshalText(b []byte) error {
	v, err := ParseLayout(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Item is one source image and its optional caption.
type Item struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Labels configures caption bands and the title font.
type Labels struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	FontColor       string `json:"fontColor,omitempty" yaml:"fontColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	BaseFontSize    int    `json:"baseFontSize,omitempty" yaml:"baseFontSize,omitempty"`
}

// Spec is the layout configuration of one Combine call.
type Spec struct {
	Layout          Layout `json:"layout" yaml:"layout"`
	Gap             int    `json:"gap" yaml:"gap"`
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	MainTitle       string `json:"mainTitle,omitempty" yaml:"mainTitle,omitempty"`
	Labels          Labels `json:"labels" yaml:"labels"`

	// Output encoding; empty Format means PNG.
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
	Quality int    `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// Defaults for unset fields.
const (
	DefaultBaseFontSize = 24
	DefaultFontColor    = "#000000"
	DefaultLabelColor   = "#ffffff"
)

func (s Spec) normalized() Spec {
	if s.Layout == "" {
		s.Layout = LayoutGrid
	}
	if s.Gap < 0 {
		s.Gap = 0
	}
	if s.Labels.BaseFontSize <= 0 {
		s.Labels.BaseFontSize = DefaultBaseFontSize
	}
	if s.Labels.FontColor == "" {
		s.Labels.FontColor = DefaultFontColor
	}
	if s.Labels.BackgroundColor == "" {
		s.Labels.BackgroundColor = DefaultLabelColor
	}
	return s
}
