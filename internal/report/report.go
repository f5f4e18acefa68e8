// Package report records the contents of an export archive as JSON so the
// archive can be listed and verified later without unpacking it by hand.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/AnyUserName/apix-cli/internal/archive"
	"github.com/AnyUserName/apix-cli/internal/dataurl"
	"github.com/AnyUserName/apix-cli/internal/hasher"
)

// New creates an empty report for the named archive.
func New(archiveName string) *Report {
	return &Report{
		Version:     SupportedVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Archive:     archiveName,
		Entries:     []Entry{},
	}
}

// Add records an archived file.
func (r *Report) Add(p, source string, data []byte) {
	r.Entries = append(r.Entries, Entry{
		Path:   p,
		Source: Source(source),
		Size:   int64(len(data)),
		Hash:   hasher.Sum(data, hasher.Len),
	})
}

// Fail records a dropped asset.
func (r *Report) Fail(filename, source string, err error) {
	r.Failures = append(r.Failures, Failure{Filename: filename, Source: Source(source), Error: err.Error()})
}

// ComputeStats recalculates aggregate statistics from entries and failures.
// ArchiveBytes is left as set by the caller.
func (r *Report) ComputeStats() {
	s := Stats{ArchiveBytes: r.Stats.ArchiveBytes}
	s.TotalEntries = len(r.Entries)
	s.TotalFailures = len(r.Failures)
	for _, e := range r.Entries {
		s.TotalBytes += e.Size
		dir := path.Dir(e.Path)
		if dir == "." {
			dir = ""
		}
		if s.ByFolder == nil {
			s.ByFolder = make(map[string]int)
		}
		s.ByFolder[dir]++
	}
	r.Stats = s
}

// Source abbreviates data URLs to their media type and size; other sources
// are kept as is.
func Source(u string) string {
	if !dataurl.IsDataURL(u) {
		return u
	}
	mt := dataurl.MediaType(u)
	if mt == "" {
		mt = "text/plain"
	}
	return fmt.Sprintf("data:%s (%d chars)", mt, len(u))
}

// FileName returns the conventional report path for an archive:
// "out/set.zip" -> "out/set.report.json".
func FileName(archivePath string) string {
	base := strings.TrimSuffix(archivePath, ".zip")
	return base + ".report.json"
}

// WriteJSON serializes the report to a JSON file.
func WriteJSON(r *Report, p string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(p, data, 0o644)
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(p string) (*Report, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if r.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported report version %d (expected %d)", r.Version, SupportedVersion)
	}
	return &r, nil
}

// Mismatch is a difference between a report and an archive.
type Mismatch struct {
	Path string
	Msg  string
}

func (m Mismatch) String() string { return m.Path + ": " + m.Msg }

// Verify compares the archive entries with the report. Every reported entry
// must be present with the recorded size and hash, and the archive must not
// hold files the report does not know about.
func (r *Report) Verify(entries []archive.Entry) []Mismatch {
	byPath := make(map[string][]byte, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e.Data
	}

	var out []Mismatch
	for _, want := range r.Entries {
		data, ok := byPath[want.Path]
		if !ok {
			out = append(out, Mismatch{want.Path, "missing from archive"})
			continue
		}
		delete(byPath, want.Path)
		if int64(len(data)) != want.Size {
			out = append(out, Mismatch{want.Path, fmt.Sprintf("size %d, report says %d", len(data), want.Size)})
			continue
		}
		if !hasher.Match(data, want.Hash) {
			out = append(out, Mismatch{want.Path, "hash mismatch"})
		}
	}
	for _, e := range entries {
		if _, extra := byPath[e.Path]; extra {
			out = append(out, Mismatch{e.Path, "not in report"})
		}
	}
	return out
}
