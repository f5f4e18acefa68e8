package cmd

import (
	"fmt"
	"os"

	"github.com/AnyUserName/apix-cli/internal/metadata"
	"github.com/AnyUserName/apix-cli/internal/pngchunk"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image.png>",
	Short: "List the chunks of a PNG and check their CRCs",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := readPNG(args[0])
	if err != nil {
		return err
	}
	if !pngchunk.HasSignature(data) {
		return fmt.Errorf("%s: %w", args[0], pngchunk.ErrBadSignature)
	}

	w := cmd.OutOrStdout()
	chunks, problems := pngchunk.Verify(data)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-8s  %-4s  %10s  %-8s  %s\n", "OFFSET", "TYPE", "LENGTH", "CRC", "")
	for _, c := range chunks {
		mark := "ok"
		if !c.Valid() {
			mark = "BAD"
		}
		fmt.Fprintf(w, "  %-8d  %-4s  %10d  %08x  %s\n", c.Offset, c.Type, len(c.Data), c.CRC, mark)
	}
	fmt.Fprintln(w)

	if _, ok := metadata.Extract(data); ok {
		fmt.Fprintf(w, "  Settings:  %s chunk present\n", metadata.Keyword)
	} else {
		fmt.Fprintln(w, "  Settings:  none")
	}
	fmt.Fprintf(w, "  Size:      %s in %d chunks\n", formatBytes(int64(len(data))), len(chunks))

	if len(problems) == 0 {
		fmt.Fprintln(w, "  ✓ Structure is valid")
		fmt.Fprintln(w)
		return nil
	}
	fmt.Fprintf(w, "  ✗ %d problem(s):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "    • %s\n", p)
	}
	fmt.Fprintln(w)
	return fmt.Errorf("%s has %d structural problems", args[0], len(problems))
}

func readPNG(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
