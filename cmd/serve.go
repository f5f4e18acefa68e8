package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/AnyUserName/apix-cli/internal/compositor"
	"github.com/AnyUserName/apix-cli/internal/export"
	"github.com/AnyUserName/apix-cli/internal/fetch"
	"github.com/AnyUserName/apix-cli/internal/loader"
	"github.com/AnyUserName/apix-cli/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr       string
	serveAllowFiles bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves embed, extract, combine and export over HTTP:

  POST /api/embed     {"image": "<data url>", "payload": {...}}
  POST /api/extract   raw PNG body or {"image": "<data url>"}
  POST /api/combine   {"preset": "...", "items": [...], "spec": {...}}
  POST /api/export    session JSON, answers with a zip
  GET  /health

Local file paths are refused as image sources unless --allow-files is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveAllowFiles, "allow-files", false, "allow local file paths as image sources")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	opts := cfg.FetchOptions()
	opts.NoFiles = !serveAllowFiles
	f := fetch.New(opts)

	srv := server.New(server.Config{
		Compositor: compositor.New(loader.New(f), logger),
		Pipeline: export.New(export.Config{
			Fetcher:  f,
			Archives: newArchiveProvider(),
			Workers:  cfg.Export.Workers,
			Logger:   logger,
			Notifier: export.LogNotifier{Logger: logger},
		}),
		MetadataEnabled: cfg.MetadataEnabled(),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, addr)
}
