package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AnyUserName/apix-cli/internal/archive"
	"github.com/AnyUserName/apix-cli/internal/fetch"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// mapFetcher serves fixed results; unknown URLs fail.
type mapFetcher struct {
	results map[string]*fetch.Result
	calls   atomic.Int32
}

func (m *mapFetcher) Fetch(_ context.Context, u string) (*fetch.Result, error) {
	m.calls.Add(1)
	if r, ok := m.results[u]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("fetch %s: 404", u)
}

type recorder struct {
	mu       sync.Mutex
	loading  int
	progress []int
	success  []string
	errors   []string
}

func (r *recorder) Loading(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading++
}

func (r *recorder) Progress(done, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, done)
}

func (r *recorder) Success(m string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, m)
}

func (r *recorder) Error(m string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, m)
}

// countingWriter records CreateArchive calls.
type countingWriter struct {
	archive.ZipWriter
	calls atomic.Int32
}

func (c *countingWriter) CreateArchive(e []archive.Entry) ([]byte, error) {
	c.calls.Add(1)
	return c.ZipWriter.CreateArchive(e)
}

func TestBuildAssets_Ordering(t *testing.T) {
	s := Session{
		InputImages: []Asset{
			{URL: "in.png", Filename: "trang-phuc-goc", Folder: "input"},
		},
		HistoricalImages: []HistoryItem{{URL: "h1"}, {URL: "h2"}},
		VideoTasks: VideoTasks{
			{ID: "a", Status: "generating"},
			{ID: "b", Status: "done", ResultURL: "v2"},
			{ID: "c", Status: "done"},
		},
		BaseOutputFilename: "thiet-ke-hoa-tiet",
	}
	got := BuildAssets(s)
	want := []Asset{
		{URL: "in.png", Filename: "trang-phuc-goc", Folder: "input"},
		{URL: "h1", Filename: "thiet-ke-hoa-tiet-1", Folder: "output"},
		{URL: "h2", Filename: "thiet-ke-hoa-tiet-2", Folder: "output"},
		{URL: "v2", Filename: "thiet-ke-hoa-tiet-video-2", Folder: "output", Extension: "mp4"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d assets: %+v", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("asset %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildAssets_Empty(t *testing.T) {
	s := Session{VideoTasks: VideoTasks{{Status: "failed", ResultURL: "x"}}}
	if got := BuildAssets(s); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestPackage_NothingToExport(t *testing.T) {
	f := &mapFetcher{}
	w := &countingWriter{}
	rec := &recorder{}
	p := New(Config{Fetcher: f, Archives: archive.Static(w), Notifier: rec, Logger: quiet})

	_, err := p.Package(context.Background(), Session{})
	if !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("err = %v, want ErrNothingToExport", err)
	}
	if w.calls.Load() != 0 {
		t.Errorf("archive written %d times", w.calls.Load())
	}
	if len(rec.errors) != 1 || len(rec.success) != 0 {
		t.Errorf("notifications: errors %v success %v", rec.errors, rec.success)
	}
	if f.calls.Load() != 0 {
		t.Errorf("fetched %d times", f.calls.Load())
	}
}

func TestPackage_PartialFailure(t *testing.T) {
	f := &mapFetcher{results: map[string]*fetch.Result{
		"ok-1": {Body: []byte("one"), ContentType: "image/png"},
		"ok-3": {Body: []byte("three"), ContentType: "image/jpeg"},
	}}
	rec := &recorder{}
	p := New(Config{Fetcher: f, Notifier: rec, Logger: quiet, Workers: 2})

	s := Session{
		HistoricalImages:   []HistoryItem{{URL: "ok-1"}, {URL: "missing"}, {URL: "ok-3"}},
		BaseOutputFilename: "set",
		ZipFilename:        "set.zip",
	}
	res, err := p.Package(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if f.calls.Load() != 3 {
		t.Errorf("fetch attempts = %d, want 3", f.calls.Load())
	}

	got, err := archive.ReadZip(res.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("archive has %d entries, want 2", len(got))
	}
	if got[0].Path != "output/set-1.png" || got[1].Path != "output/set-3.jpeg" {
		t.Errorf("paths %q %q", got[0].Path, got[1].Path)
	}
	if !bytes.Equal(got[1].Data, []byte("three")) {
		t.Errorf("data %q", got[1].Data)
	}

	if res.Filename != "set.zip" {
		t.Errorf("filename %q", res.Filename)
	}
	if len(res.Report.Failures) != 1 || res.Report.Failures[0].Filename != "set-2" {
		t.Errorf("failures %+v", res.Report.Failures)
	}
	if res.Report.Stats.ArchiveBytes != int64(len(res.Data)) || res.Report.Stats.TotalEntries != 2 {
		t.Errorf("stats %+v", res.Report.Stats)
	}
	if len(rec.success) != 1 || len(rec.errors) != 0 {
		t.Errorf("notifications: success %v errors %v", rec.success, rec.errors)
	}
	if len(rec.progress) != 3 || rec.progress[2] != 3 {
		t.Errorf("progress %v", rec.progress)
	}
}

func TestPackage_AllFailStillArchives(t *testing.T) {
	rec := &recorder{}
	p := New(Config{Fetcher: &mapFetcher{}, Notifier: rec, Logger: quiet})
	res, err := p.PackageAssets(context.Background(), []Asset{{URL: "blob:x", Filename: "a"}}, "a.zip")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 0 || len(res.Report.Failures) != 1 {
		t.Errorf("entries %d failures %d", len(res.Entries), len(res.Report.Failures))
	}
}

func TestPackage_ArchiveWriterUnavailable(t *testing.T) {
	f := &mapFetcher{results: map[string]*fetch.Result{"u": {Body: []byte("x")}}}
	rec := &recorder{}
	prov := archive.NewProvider(func(context.Context) (archive.Writer, error) {
		return nil, errors.New("cdn down")
	})
	p := New(Config{Fetcher: f, Archives: prov, Notifier: rec, Logger: quiet})

	_, err := p.PackageAssets(context.Background(), []Asset{{URL: "u", Filename: "u"}}, "x.zip")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(rec.errors) != 1 {
		t.Errorf("errors %v", rec.errors)
	}
	if f.calls.Load() != 0 {
		t.Error("fetched despite missing writer")
	}
}

func TestPackage_DuplicatePathKeepsLater(t *testing.T) {
	f := &mapFetcher{results: map[string]*fetch.Result{
		"a": {Body: []byte("first")},
		"b": {Body: []byte("second")},
	}}
	p := New(Config{Fetcher: f, Logger: quiet})
	res, err := p.PackageAssets(context.Background(), []Asset{
		{URL: "a", Filename: "same"},
		{URL: "b", Filename: "same"},
	}, "d.zip")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 || string(res.Entries[0].Data) != "second" {
		t.Errorf("entries %+v", res.Entries)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		name  string
		asset Asset
		ct    string
		want  string
	}{
		{"explicit", Asset{URL: "data:image/png;base64,AA", Extension: "mp4"}, "image/png", "mp4"},
		{"data url", Asset{URL: "data:image/webp;base64,AA"}, "", "webp"},
		{"content type", Asset{URL: "https://x/y"}, "image/jpeg; charset=binary", "jpeg"},
		{"url path", Asset{URL: "https://x/clip.MOV?sig=1"}, "application/octet-stream", "mov"},
		{"file path", Asset{URL: "/tmp/out/a.gif"}, "", "gif"},
		{"fallback", Asset{URL: "blob:https://x/123"}, "", "png"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.asset, tt.ct); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestEntryPath(t *testing.T) {
	if got := EntryPath(Asset{Filename: "a", Folder: "input"}, "png"); got != "input/a.png" {
		t.Errorf("got %q", got)
	}
	if got := EntryPath(Asset{Filename: "a"}, "jpeg"); got != "a.jpeg" {
		t.Errorf("got %q", got)
	}
}

func TestSession_JSON(t *testing.T) {
	doc := `{
		"inputImages": [{"url": "data:image/png;base64,AA", "filename": "trang-phuc-goc", "folder": "input"}],
		"historicalImages": ["u1", {"url": "u2", "prompt": "ignored"}],
		"videoTasks": {"t2": {"status": "done", "resultUrl": "v2"}, "t1": {"status": "pending"}},
		"zipFilename": "ket-qua.zip",
		"baseOutputFilename": "thiet-ke"
	}`
	var s Session
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		t.Fatal(err)
	}
	if len(s.HistoricalImages) != 2 || s.HistoricalImages[0].URL != "u1" || s.HistoricalImages[1].URL != "u2" {
		t.Errorf("history %+v", s.HistoricalImages)
	}
	if len(s.VideoTasks) != 2 || s.VideoTasks[0].ID != "t2" || s.VideoTasks[1].ID != "t1" {
		t.Errorf("videos %+v", s.VideoTasks)
	}
	if s.InputImages[0].Folder != "input" || s.ZipFilename != "ket-qua.zip" {
		t.Errorf("session %+v", s)
	}
	if err := json.Unmarshal([]byte(`{"historicalImages": [42]}`), &s); err == nil {
		t.Error("numeric history item accepted")
	}
}

func TestLoadSession_YAML(t *testing.T) {
	doc := `
inputImages:
  - url: in.png
    filename: original
    folder: input
historicalImages:
  - out-1.png
  - url: out-2.png
videoTasks:
  - id: v1
    status: done
    resultUrl: v1.mp4
zipFilename: bundle.zip
baseOutputFilename: design
`
	p := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSession(p)
	if err != nil {
		t.Fatal(err)
	}
	assets := BuildAssets(*s)
	if len(assets) != 4 {
		t.Fatalf("assets %+v", assets)
	}
	if assets[2].URL != "out-2.png" || assets[3].Filename != "design-video-1" {
		t.Errorf("assets %+v", assets)
	}

	mapDoc := "videoTasks:\n  z:\n    status: done\n    resultUrl: z.mp4\n  a:\n    status: done\n    resultUrl: a.mp4\n"
	p2 := filepath.Join(t.TempDir(), "s.yml")
	os.WriteFile(p2, []byte(mapDoc), 0o644)
	s2, err := LoadSession(p2)
	if err != nil {
		t.Fatal(err)
	}
	if len(s2.VideoTasks) != 2 || s2.VideoTasks[0].ID != "z" {
		t.Errorf("map order lost: %+v", s2.VideoTasks)
	}
}

func TestScanDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spring")
	files := []string{
		"input/model.png",
		"input/fabric/swatch.jpg",
		"b.png",
		"a.jpeg",
		"clip.mp4",
		"notes.txt",
		".cache/skip.png",
	}
	for _, f := range files {
		p := filepath.Join(dir, filepath.FromSlash(f))
		os.MkdirAll(filepath.Dir(p), 0o755)
		if err := os.WriteFile(p, []byte(f), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := ScanDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.BaseOutputFilename != "spring" || s.ZipFilename != "spring.zip" {
		t.Errorf("names %q %q", s.BaseOutputFilename, s.ZipFilename)
	}
	if len(s.InputImages) != 2 || s.InputImages[0].Filename != "fabric-swatch" || s.InputImages[1].Filename != "model" {
		t.Errorf("inputs %+v", s.InputImages)
	}
	if len(s.HistoricalImages) != 2 || filepath.Base(s.HistoricalImages[0].URL) != "a.jpeg" {
		t.Errorf("history %+v", s.HistoricalImages)
	}
	if len(s.VideoTasks) != 1 || !s.VideoTasks[0].Done() {
		t.Errorf("videos %+v", s.VideoTasks)
	}

	// End to end through the real fetcher.
	p := New(Config{Fetcher: fetch.New(fetch.Config{}), Logger: quiet})
	res, err := p.Package(context.Background(), *s)
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, e := range res.Entries {
		paths = append(paths, e.Path)
	}
	want := []string{
		"input/fabric-swatch.jpg", "input/model.png",
		"output/spring-1.jpeg", "output/spring-2.png",
		"output/spring-video-1.mp4",
	}
	if fmt.Sprint(paths) != fmt.Sprint(want) {
		t.Errorf("paths %v, want %v", paths, want)
	}
}

func TestPackage_HTTPAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/render.webp":
			w.Header().Set("Content-Type", "image/webp")
			w.Write([]byte("RIFF"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := New(Config{Fetcher: fetch.New(fetch.Config{}), Logger: quiet})
	res, err := p.Package(context.Background(), Session{
		HistoricalImages:   []HistoryItem{{URL: srv.URL + "/render.webp"}, {URL: srv.URL + "/gone.png"}},
		BaseOutputFilename: "r",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Path != "output/r-1.webp" {
		t.Errorf("entries %+v", res.Entries)
	}
	if res.Filename != DefaultZipFilename {
		t.Errorf("filename %q", res.Filename)
	}
}
