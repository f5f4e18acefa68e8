// Package fetch loads asset bytes from data URLs, local files and HTTP(S).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnyUserName/apix-cli/internal/dataurl"
)

var (
	ErrUnsupportedScheme = errors.New("fetch: unsupported URL scheme")
	ErrLocalFile         = errors.New("fetch: local file access disabled")
)

// Result is a fetched asset.
type Result struct {
	Body        []byte
	ContentType string // from the data URL, the response header, or the file extension
}

// Config configures the fetcher.
type Config struct {
	Timeout   time.Duration // HTTP timeout. Default: 30s.
	MaxBytes  int64         // Max body size. Default: 64MB.
	UserAgent string
	// NoFiles rejects file: URLs and plain paths. The HTTP API sets it.
	NoFiles bool
	// Client overrides the HTTP client (tests).
	Client *http.Client
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 64 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "apix/1.0"
	}
}

// Fetcher resolves asset URLs to bytes.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{client: client, config: cfg}
}

// Fetch loads rawURL. Supported forms: data: URLs, http(s) URLs, file: URLs
// and plain filesystem paths. blob: URLs only exist inside a browser and are
// rejected with ErrUnsupportedScheme.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if dataurl.IsDataURL(rawURL) {
		d, err := dataurl.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		if int64(len(d.Data)) > f.config.MaxBytes {
			return nil, fmt.Errorf("data url exceeds %d bytes", f.config.MaxBytes)
		}
		return &Result{Body: d.Data, ContentType: d.MediaType}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." parses as scheme "c"
		return f.readFile(rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.get(ctx, rawURL)
	case "file":
		return f.readFile(u.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", f.config.MaxBytes)
	}
	return &Result{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) readFile(path string) (*Result, error) {
	if f.config.NoFiles {
		return nil, ErrLocalFile
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > f.config.MaxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, f.config.MaxBytes)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Result{Body: body, ContentType: contentTypeByExt(path)}, nil
}

var extTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

func contentTypeByExt(path string) string {
	return extTypes[strings.ToLower(filepath.Ext(path))]
}
