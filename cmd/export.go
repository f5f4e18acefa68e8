package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AnyUserName/apix-cli/internal/export"
	"github.com/AnyUserName/apix-cli/internal/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	exportOut        string
	exportWorkers    int
	exportReport     bool
	exportNoProgress bool
	exportBase       string
)

var exportCmd = &cobra.Command{
	Use:   "export <session.yaml|session.json|dir>",
	Short: "Package a session's inputs, outputs and videos into a zip",
	Long: `Reads a session file (or scans a directory of outputs) and writes a
zip holding input images under input/, generated images as
output/<base>-<n>.<ext> and finished videos as output/<base>-video-<n>.mp4.

Assets that cannot be fetched are skipped and listed at the end; the
export only fails when there is nothing to package.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output zip (default: the session's zip name)")
	exportCmd.Flags().IntVarP(&exportWorkers, "workers", "w", 0, "parallel fetches (0 = config or NumCPU)")
	exportCmd.Flags().BoolVar(&exportReport, "report", false, "write <zip>.report.json next to the archive")
	exportCmd.Flags().BoolVar(&exportNoProgress, "no-progress", false, "disable the progress bar")
	exportCmd.Flags().StringVar(&exportBase, "base", "", "override the output file base name")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	start := time.Now()

	sess, err := loadSessionArg(args[0])
	if err != nil {
		return err
	}
	if exportBase != "" {
		sess.BaseOutputFilename = exportBase
	}

	out := exportOut
	if out == "" {
		out = sess.ZipFilename
	}
	if out == "" {
		out = export.DefaultZipFilename
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		name := sess.ZipFilename
		if name == "" {
			name = export.DefaultZipFilename
		}
		out = filepath.Join(out, name)
	}
	sess.ZipFilename = filepath.Base(out)

	workers := exportWorkers
	if workers <= 0 {
		workers = cfg.Export.Workers
	}

	var notifier export.Notifier = export.LogNotifier{Logger: logger}
	if !exportNoProgress {
		notifier = &barNotifier{w: os.Stderr, log: logger}
	}

	p := export.New(export.Config{
		Fetcher:  newFetcher(),
		Archives: newArchiveProvider(),
		Workers:  workers,
		Logger:   logger,
		Notifier: notifier,
	})
	res, err := p.Package(cmd.Context(), *sess)
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if exportReport || cfg.Export.WriteReport {
		rp := report.FileName(out)
		if err := report.WriteJSON(res.Report, rp); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Debug("report written", "path", rp)
	}

	printExportReport(cmd.OutOrStdout(), out, res.Report, time.Since(start))
	return nil
}

func loadSessionArg(path string) (*export.Session, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		s, err := export.ScanDir(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		logger.Debug("scanned directory", "dir", path,
			"inputs", len(s.InputImages), "outputs", len(s.HistoricalImages), "videos", len(s.VideoTasks))
		return s, nil
	}
	return export.LoadSession(path)
}

func printExportReport(w io.Writer, path string, r *report.Report, elapsed time.Duration) {
	s := r.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Archive:     %s\n", path)
	fmt.Fprintf(w, "  Files:       %d\n", s.TotalEntries)
	fmt.Fprintf(w, "  Content:     %s\n", formatBytes(s.TotalBytes))
	fmt.Fprintf(w, "  Zip size:    %s\n", formatBytes(s.ArchiveBytes))
	fmt.Fprintf(w, "  Time:        %s\n", elapsed.Round(time.Millisecond))
	printFolders(w, s.ByFolder)

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Skipped (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(w, "    ⚠ %-30s %s\n", truncKey(f.Filename, 30), f.Error)
		}
	}
	fmt.Fprintln(w)
}

func printFolders(w io.Writer, byFolder map[string]int) {
	if len(byFolder) == 0 {
		return
	}
	var folders []string
	for f := range byFolder {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Folders:")
	for _, f := range folders {
		name := f + "/"
		if f == "" {
			name = "(root)"
		}
		fmt.Fprintf(w, "    %-12s %4d files\n", name, byFolder[f])
	}
}

// barNotifier renders fetch progress as a terminal progress bar. The bar is
// created on the first Progress call, once the total is known.
type barNotifier struct {
	w   io.Writer
	log *slog.Logger
	bar *progressbar.ProgressBar
}

func (n *barNotifier) Loading(msg string) { n.log.Debug(msg) }

func (n *barNotifier) Progress(done, total int) {
	if n.bar == nil {
		n.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(n.w),
			progressbar.OptionSetDescription(fmt.Sprintf("Fetching %d assets", total)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	n.bar.Set(done)
}

func (n *barNotifier) Success(msg string) {
	if n.bar != nil {
		n.bar.Finish()
	}
	n.log.Info(msg)
}

func (n *barNotifier) Error(msg string) {
	if n.bar != nil {
		n.bar.Clear()
	}
	n.log.Error(msg)
}
