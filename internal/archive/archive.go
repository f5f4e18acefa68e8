// Package archive packs named byte blobs into a single archive file.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Entry is one file inside an archive.
type Entry struct {
	Path string
	Data []byte
}

// Writer turns a list of entries into archive bytes.
type Writer interface {
	CreateArchive(entries []Entry) ([]byte, error)
}

// ZipWriter writes deflate-compressed zip archives.
type ZipWriter struct {
	// Level is a flate compression level; zero means flate.DefaultCompression.
	Level int
	// Modified stamps every entry. Zero means the time of the call.
	Modified time.Time
}

// NewZipWriter validates level and returns a writer using it.
func NewZipWriter(level int) (*ZipWriter, error) {
	if level != 0 && (level < flate.HuffmanOnly || level > flate.BestCompression) {
		return nil, fmt.Errorf("archive: compression level %d out of range", level)
	}
	return &ZipWriter{Level: level}, nil
}

func (z *ZipWriter) CreateArchive(entries []Entry) ([]byte, error) {
	level := z.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	mod := z.Modified
	if mod.IsZero() {
		mod = time.Now()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Path == "" {
			return nil, fmt.Errorf("archive: entry with empty path")
		}
		if seen[e.Path] {
			return nil, fmt.Errorf("archive: duplicate entry %q", e.Path)
		}
		seen[e.Path] = true

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Path,
			Method:   zip.Deflate,
			Modified: mod,
		})
		if err != nil {
			return nil, fmt.Errorf("archive: %s: %w", e.Path, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("archive: %s: %w", e.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: close: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadZip returns the entries of a zip archive in directory order.
func ReadZip(data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("archive: %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("archive: %s: %w", f.Name, err)
		}
		entries = append(entries, Entry{Path: f.Name, Data: b})
	}
	return entries, nil
}
