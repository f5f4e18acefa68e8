// Package export packages a session's inputs, outputs and videos into a
// single zip archive.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"runtime"
	"strings"
	"sync"

	"github.com/AnyUserName/apix-cli/internal/archive"
	"github.com/AnyUserName/apix-cli/internal/dataurl"
	"github.com/AnyUserName/apix-cli/internal/fetch"
	"github.com/AnyUserName/apix-cli/internal/report"
)

var ErrNothingToExport = errors.New("export: nothing to export")

// Fetcher loads asset bytes. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	Fetcher  Fetcher
	Archives *archive.Provider // default: an in-process zip writer
	Workers  int               // concurrent fetches; default runtime.NumCPU()
	Logger   *slog.Logger
	Notifier Notifier
}

// Pipeline fetches assets and writes them into an archive.
type Pipeline struct {
	cfg Config
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Archives == nil {
		cfg.Archives = archive.Static(&archive.ZipWriter{})
	}
	return &Pipeline{cfg: cfg}
}

// Result is a finished archive.
type Result struct {
	Filename string
	Data     []byte
	Entries  []archive.Entry
	Report   *report.Report
}

// Package builds the asset list of s and archives it.
func (p *Pipeline) Package(ctx context.Context, s Session) (*Result, error) {
	name := s.ZipFilename
	if name == "" {
		name = DefaultZipFilename
	}
	return p.PackageAssets(ctx, BuildAssets(s), name)
}

type fetched struct {
	entry archive.Entry
	err   error
}

// PackageAssets fetches every asset concurrently and archives the ones that
// arrive. A failed fetch drops that asset only. An empty list or an
// unavailable archive writer fails the whole export.
func (p *Pipeline) PackageAssets(ctx context.Context, assets []Asset, zipName string) (*Result, error) {
	n := p.cfg.Notifier
	log := p.cfg.Logger

	if len(assets) == 0 {
		n.Error("No images to download.")
		return nil, ErrNothingToExport
	}
	n.Loading("Preparing zip file...")

	writer, err := p.cfg.Archives.Get(ctx)
	if err != nil {
		log.Error("archive writer unavailable", "error", err)
		n.Error("Could not load the archive library.")
		return nil, fmt.Errorf("load archive writer: %w", err)
	}

	results := make([]fetched, len(assets))
	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, p.cfg.Workers)
	done := 0

	for i, a := range assets {
		i, a := i, a
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = p.fetchOne(ctx, a)

			mu.Lock()
			done++
			n.Progress(done, len(assets))
			mu.Unlock()
		}()
	}
	wg.Wait()

	rep := report.New(zipName)
	last := make(map[string]int, len(results))
	for i, r := range results {
		if r.err == nil {
			last[r.entry.Path] = i
		}
	}
	entries := make([]archive.Entry, 0, len(assets))
	for i, r := range results {
		a := assets[i]
		if r.err != nil {
			log.Warn("could not add asset to archive", "filename", a.Filename, "source", report.Source(a.URL), "error", r.err)
			rep.Fail(a.Filename, a.URL, r.err)
			continue
		}
		if last[r.entry.Path] != i {
			log.Warn("duplicate archive path, keeping the later asset", "path", r.entry.Path)
			continue
		}
		entries = append(entries, r.entry)
		rep.Add(r.entry.Path, a.URL, r.entry.Data)
	}
	if len(entries) == 0 {
		log.Warn("every asset failed, archive will be empty", "assets", len(assets))
	} else if len(rep.Failures) > 0 {
		log.Warn("some assets were skipped", "failed", len(rep.Failures), "assets", len(assets))
	}

	data, err := writer.CreateArchive(entries)
	if err != nil {
		log.Error("failed to generate zip file", "error", err)
		n.Error("Could not create the zip file.")
		return nil, fmt.Errorf("create archive: %w", err)
	}
	rep.Stats.ArchiveBytes = int64(len(data))
	rep.ComputeStats()

	n.Success(fmt.Sprintf("Zip file %s is ready (%d files).", zipName, len(entries)))
	log.Debug("archive written", "name", zipName, "entries", len(entries), "bytes", len(data))
	return &Result{Filename: zipName, Data: data, Entries: entries, Report: rep}, nil
}

func (p *Pipeline) fetchOne(ctx context.Context, a Asset) fetched {
	res, err := p.cfg.Fetcher.Fetch(ctx, a.URL)
	if err != nil {
		return fetched{err: err}
	}
	return fetched{entry: archive.Entry{
		Path: EntryPath(a, extensionFor(a, res.ContentType)),
		Data: res.Body,
	}}
}

// EntryPath joins folder, filename and extension into an archive path.
func EntryPath(a Asset, ext string) string {
	name := a.Filename + "." + ext
	if a.Folder == "" {
		return name
	}
	return a.Folder + "/" + name
}

// extensionFor picks the first of: the asset's explicit extension, the
// subtype of a data URL, the subtype of the fetched content type, the
// extension of the URL path, and finally "png".
func extensionFor(a Asset, contentType string) string {
	if a.Extension != "" {
		return a.Extension
	}
	if ext := dataurl.Extension(dataurl.MediaType(a.URL)); ext != "" {
		return ext
	}
	if ext := dataurl.Extension(contentType); ext != "" {
		return ext
	}
	if ext := urlExtension(a.URL); ext != "" {
		return ext
	}
	return "png"
}

func urlExtension(raw string) string {
	if dataurl.IsDataURL(raw) {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" || len(ext) > 5 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
