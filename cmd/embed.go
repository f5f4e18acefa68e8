package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/AnyUserName/apix-cli/internal/dataurl"
	"github.com/AnyUserName/apix-cli/internal/metadata"
	"github.com/spf13/cobra"
)

var (
	embedPayload     string
	embedPayloadFile string
	embedOut         string
	embedDisabled    bool
)

var embedCmd = &cobra.Command{
	Use:   "embed <image>",
	Short: "Store a JSON settings payload inside a PNG",
	Long: `Inserts a tEXt chunk holding the JSON payload just before IEND.
Non-PNG inputs and PNGs without an IEND chunk are copied unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().StringVarP(&embedPayload, "payload", "p", "", "JSON payload")
	embedCmd.Flags().StringVarP(&embedPayloadFile, "payload-file", "f", "", "read the JSON payload from a file")
	embedCmd.Flags().StringVarP(&embedOut, "out", "o", "", "output file (default: overwrite input)")
	embedCmd.Flags().BoolVar(&embedDisabled, "disable", false, "copy the image without embedding")
	embedCmd.MarkFlagsMutuallyExclusive("payload", "payload-file")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(_ *cobra.Command, args []string) error {
	in := args[0]
	out := embedOut
	if out == "" {
		out = in
	}

	raw := []byte(embedPayload)
	if embedPayloadFile != "" {
		b, err := os.ReadFile(embedPayloadFile)
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
		raw = b
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errors.New("a payload is required (--payload or --payload-file)")
	}
	if !json.Valid(raw) {
		return errors.New("payload is not valid JSON")
	}

	img, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	src := dataurl.Encode(http.DetectContentType(img), img)

	enabled := cfg.MetadataEnabled() && !embedDisabled
	res, err := metadata.Embed(src, json.RawMessage(raw), enabled)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if res == src {
		logger.Info("image copied without metadata", "input", in, "enabled", enabled)
	}

	d, err := dataurl.Parse(res)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := os.WriteFile(out, d.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Debug("embedded settings", "output", out, "bytes", len(d.Data))
	return nil
}
