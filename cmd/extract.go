package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AnyUserName/apix-cli/internal/metadata"
	"github.com/spf13/cobra"
)

var (
	extractPretty bool
	extractStrict bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image.png>...",
	Short: "Print the JSON settings stored in PNG files",
	Long: `Prints the embedded settings of each file as one JSON document per
line. When a file carries several payloads the most recent one wins.
Files without settings print nothing unless --strict is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractPretty, "pretty", false, "indent the JSON output")
	extractCmd.Flags().BoolVar(&extractStrict, "strict", false, "fail when a file has no settings")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	missing := 0
	for _, path := range args {
		js, ok, err := metadata.ExtractFile(path)
		if err != nil {
			return err
		}
		if !ok {
			missing++
			logger.Warn("no settings found", "file", path)
			continue
		}
		if extractPretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, js, "", "  "); err == nil {
				js = buf.Bytes()
			}
		}
		fmt.Fprintf(w, "%s\n", js)
	}
	if extractStrict && missing > 0 {
		return fmt.Errorf("%d of %d files have no settings", missing, len(args))
	}
	return nil
}
