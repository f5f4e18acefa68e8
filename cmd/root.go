package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/AnyUserName/apix-cli/internal/archive"
	"github.com/AnyUserName/apix-cli/internal/config"
	"github.com/AnyUserName/apix-cli/internal/fetch"
	"github.com/AnyUserName/apix-cli/internal/metadata"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	verbose    bool
	configPath string

	cfg    = config.Default()
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "apix",
	Short: "PNG session metadata, image compositing and batch export",
	Long: `apix keeps generation settings inside the PNGs they produced,
lays several images out on one canvas, and packages a whole session
(inputs, outputs and videos) into a single zip.

Settings are stored in a standard tEXt chunk under the "aPixSettings"
keyword, so any PNG viewer still opens the file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		metadata.Logger = logger

		c, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger.Debug("config loaded", "path", configPath, "workers", cfg.Export.Workers)
		return nil
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "apix: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("APIX_CONFIG"), "YAML config file")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"apix %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func newFetcher() *fetch.Fetcher {
	return fetch.New(cfg.FetchOptions())
}

// newArchiveProvider defers building the zip writer until the first export
// asks for it.
func newArchiveProvider() *archive.Provider {
	return archive.NewProvider(func(context.Context) (archive.Writer, error) {
		return archive.NewZipWriter(cfg.Export.CompressionLevel)
	})
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return "..." + s[len(s)-width+3:]
}
