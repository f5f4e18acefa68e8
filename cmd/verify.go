package cmd

import (
	"fmt"
	"os"

	"github.com/AnyUserName/apix-cli/internal/archive"
	"github.com/AnyUserName/apix-cli/internal/report"
	"github.com/spf13/cobra"
)

var verifyReport string

var verifyCmd = &cobra.Command{
	Use:   "verify <archive.zip>",
	Short: "Check an archive against its export report",
	Long: `Unpacks the archive in memory and compares every file with the
report written at export time: presence, size and xxhash content hash.
Files present in the archive but absent from the report are flagged too.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyReport, "report", "r", "", "report path (default: <archive>.report.json)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	zipPath := args[0]
	rp := verifyReport
	if rp == "" {
		rp = report.FileName(zipPath)
	}

	data, err := os.ReadFile(zipPath)
	if err != nil {
		return err
	}
	entries, err := archive.ReadZip(data)
	if err != nil {
		return fmt.Errorf("read %s: %w", zipPath, err)
	}
	r, err := report.ReadJSON(rp)
	if err != nil {
		return fmt.Errorf("read report %s: %w", rp, err)
	}

	w := cmd.OutOrStdout()
	problems := r.Verify(entries)
	if len(problems) == 0 {
		fmt.Fprintf(w, "  ✓ %s: %d files match %s\n", zipPath, len(r.Entries), rp)
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(w, "  ✗ %s\n", p)
	}
	return fmt.Errorf("%d problem(s) found in %s", len(problems), zipPath)
}
