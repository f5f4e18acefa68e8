package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AnyUserName/apix-cli/internal/report"
	"github.com/spf13/cobra"
)

var statsTop int

var statsCmd = &cobra.Command{
	Use:   "stats <archive.zip|report.json>",
	Short: "Display statistics for an exported archive",
	Long: `Reads the report written next to an archive by "apix export --report"
and prints totals, the folder breakdown, the heaviest files and any
assets that were skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsTop, "top", "n", 5, "number of largest files to list")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	path := reportPathFor(args[0])
	r, err := report.ReadJSON(path)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	r.ComputeStats()
	printStats(cmd.OutOrStdout(), r, statsTop)
	return nil
}

// reportPathFor maps an archive or a directory to the report that
// describes it; anything else is taken as the report itself.
func reportPathFor(p string) string {
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return filepath.Join(p, report.FileName(filepath.Base(filepath.Clean(p))+".zip"))
	}
	if strings.EqualFold(filepath.Ext(p), ".zip") {
		return report.FileName(p)
	}
	return p
}

func printStats(w io.Writer, r *report.Report, top int) {
	s := r.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Report version:   %d\n", r.Version)
	fmt.Fprintf(w, "  Generated:        %s\n", r.GeneratedAt)
	fmt.Fprintf(w, "  Archive:          %s\n", r.Archive)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Files:            %d\n", s.TotalEntries)
	fmt.Fprintf(w, "  Skipped:          %d\n", s.TotalFailures)
	fmt.Fprintf(w, "  Content size:     %s\n", formatBytes(s.TotalBytes))
	if s.ArchiveBytes > 0 {
		fmt.Fprintf(w, "  Zip size:         %s\n", formatBytes(s.ArchiveBytes))
		if s.TotalBytes > 0 {
			ratio := float64(s.ArchiveBytes) / float64(s.TotalBytes) * 100
			fmt.Fprintf(w, "  Compression:      %.1f%% of content\n", ratio)
		}
	}
	printFolders(w, s.ByFolder)

	// Per-extension breakdown.
	type extStat struct {
		count int
		bytes int64
	}
	byExt := map[string]extStat{}
	for _, e := range r.Entries {
		ext := strings.TrimPrefix(filepath.Ext(e.Path), ".")
		if ext == "" {
			ext = "(none)"
		}
		st := byExt[ext]
		st.count++
		st.bytes += e.Size
		byExt[ext] = st
	}
	if len(byExt) > 0 {
		var exts []string
		for e := range byExt {
			exts = append(exts, e)
		}
		sort.Strings(exts)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Type breakdown:")
		for _, e := range exts {
			st := byExt[e]
			fmt.Fprintf(w, "    %-6s  %4d files  %s\n", e, st.count, formatBytes(st.bytes))
		}
	}

	if top > 0 && len(r.Entries) > 0 {
		entries := append([]report.Entry(nil), r.Entries...)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Size > entries[j].Size })
		if len(entries) > top {
			entries = entries[:top]
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Largest files:")
		for _, e := range entries {
			fmt.Fprintf(w, "    %-36s %10s\n", truncKey(e.Path, 36), formatBytes(e.Size))
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Warnings (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(w, "    ⚠ %s (%s): %s\n", f.Filename, f.Source, f.Error)
		}
	}
	fmt.Fprintln(w)
}
