package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AnyUserName/apix-cli/internal/compositor"
	"github.com/AnyUserName/apix-cli/internal/dataurl"
	"github.com/AnyUserName/apix-cli/internal/loader"
	"github.com/AnyUserName/apix-cli/internal/metadata"
	"github.com/AnyUserName/apix-cli/internal/preset"
	"github.com/spf13/cobra"
)

var (
	combineOut        string
	combinePreset     string
	combineLayoutFile string
	combineLayout     string
	combineGap        int
	combineBackground string
	combineTitle      string
	combineLabels     []string
	combineFontSize   int
	combineFormat     string
	combineQuality    int
	combineNoSettings bool
)

var combineCmd = &cobra.Command{
	Use:   "combine [image...]",
	Short: "Lay several images out on one canvas",
	Long: `Loads every image (file path, file:, http(s) or data: URL) and draws
them in a row, a column or a near-square grid, with an optional title and
one caption per image.

Settings come from a preset, then a layout file, then flags. The layout
used is embedded in PNG output unless --no-settings is given.`,
	RunE: runCombine,
}

func init() {
	f := combineCmd.Flags()
	f.StringVarP(&combineOut, "out", "o", "combined.png", "output file")
	f.StringVarP(&combinePreset, "preset", "p", preset.DefaultName, "layout preset ("+strings.Join(preset.Names(), ", ")+")")
	f.StringVar(&combineLayoutFile, "layout-file", "", "YAML layout file (spec and items)")
	f.StringVarP(&combineLayout, "layout", "l", "", "row, column or grid")
	f.IntVar(&combineGap, "gap", -1, "gap between images in pixels")
	f.StringVar(&combineBackground, "background", "", "canvas color, e.g. #ffffff")
	f.StringVarP(&combineTitle, "title", "t", "", "title drawn above the images")
	f.StringArrayVar(&combineLabels, "label", nil, "caption for the n-th image (repeatable)")
	f.IntVar(&combineFontSize, "font-size", 0, "base font size in pixels")
	f.StringVar(&combineFormat, "format", "", "png or jpeg (default: from --out extension)")
	f.IntVarP(&combineQuality, "quality", "q", 0, "jpeg quality 1-100")
	f.BoolVar(&combineNoSettings, "no-settings", false, "do not embed the layout in the output")
	rootCmd.AddCommand(combineCmd)
}

func runCombine(cmd *cobra.Command, args []string) error {
	start := time.Now()

	p, ok := preset.Get(combinePreset)
	if !ok {
		return fmt.Errorf("unknown preset %q", combinePreset)
	}
	spec := p.Spec
	var items []compositor.Item
	if combineLayoutFile != "" {
		s, it, err := preset.LoadFile(combineLayoutFile)
		if err != nil {
			return fmt.Errorf("layout file: %w", err)
		}
		spec, items = s, it
	}
	for _, a := range args {
		items = append(items, compositor.Item{URL: a})
	}
	if len(items) == 0 {
		return errors.New("no images given")
	}
	if len(combineLabels) > len(items) {
		return fmt.Errorf("%d labels for %d images", len(combineLabels), len(items))
	}
	for i, l := range combineLabels {
		items[i].Label = l
	}

	if err := applyCombineFlags(cmd, &spec); err != nil {
		return err
	}
	if len(combineLabels) > 0 {
		spec.Labels.Enabled = true
	}

	c := compositor.New(loader.New(newFetcher()), logger)
	out, err := c.Combine(cmd.Context(), items, spec)
	if err != nil {
		return err
	}
	if !combineNoSettings {
		out, err = metadata.Embed(out, spec, cfg.MetadataEnabled())
		if err != nil {
			return err
		}
	}

	d, err := dataurl.Parse(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(combineOut, d.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", combineOut, err)
	}
	logger.Info("combined images",
		"count", len(items), "layout", spec.Layout, "output", combineOut,
		"size", formatBytes(int64(len(d.Data))), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// applyCombineFlags overrides spec with every flag the user set.
func applyCombineFlags(cmd *cobra.Command, spec *compositor.Spec) error {
	f := cmd.Flags()
	if f.Changed("layout") {
		l, err := compositor.ParseLayout(combineLayout)
		if err != nil {
			return err
		}
		spec.Layout = l
	}
	if f.Changed("gap") {
		spec.Gap = combineGap
	}
	if f.Changed("background") {
		spec.BackgroundColor = combineBackground
	}
	if f.Changed("title") {
		spec.MainTitle = combineTitle
	}
	if f.Changed("font-size") {
		spec.Labels.BaseFontSize = combineFontSize
	}
	if f.Changed("quality") {
		spec.Quality = combineQuality
	}
	switch {
	case f.Changed("format"):
		spec.Format = combineFormat
	case spec.Format == "":
		lower := strings.ToLower(combineOut)
		if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
			spec.Format = "jpeg"
		}
	}
	return nil
}
