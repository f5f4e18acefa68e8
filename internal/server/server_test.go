package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnyUserName/apix-cli/internal/archive"
	"github.com/AnyUserName/apix-cli/internal/compositor"
	"github.com/AnyUserName/apix-cli/internal/dataurl"
	"github.com/AnyUserName/apix-cli/internal/export"
	"github.com/AnyUserName/apix-cli/internal/fetch"
	"github.com/AnyUserName/apix-cli/internal/loader"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	f := fetch.New(fetch.Config{NoFiles: true})
	c := compositor.New(loader.New(f), quiet)
	p := export.New(export.Config{Fetcher: f, Logger: quiet})
	srv := httptest.NewServer(New(Config{
		Compositor:      c,
		Pipeline:        p,
		MetadataEnabled: true,
		MaxBodyBytes:    1 << 20,
		Logger:          quiet,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body %v", body)
	}
}

func TestEmbedThenExtract(t *testing.T) {
	srv := newTestServer(t)
	src := dataurl.Encode("image/png", pngBytes(t, 10, 10))

	resp := postJSON(t, srv.URL+"/api/embed", map[string]any{
		"image":   src,
		"payload": map[string]any{"a": 1},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("embed status %d", resp.StatusCode)
	}
	var embedded imageBody
	json.NewDecoder(resp.Body).Decode(&embedded)
	if embedded.Image == src {
		t.Fatal("image unchanged")
	}

	// JSON body form.
	resp = postJSON(t, srv.URL+"/api/extract", imageBody{Image: embedded.Image})
	var got extractResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if !got.Found || string(got.Payload) != `{"a":1}` {
		t.Errorf("extract: found=%v payload=%s", got.Found, got.Payload)
	}

	// Raw PNG body form.
	d, _ := dataurl.Parse(embedded.Image)
	raw, err := http.Post(srv.URL+"/api/extract", "image/png", bytes.NewReader(d.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Body.Close()
	got = extractResponse{}
	json.NewDecoder(raw.Body).Decode(&got)
	if !got.Found || string(got.Payload) != `{"a":1}` {
		t.Errorf("raw extract: found=%v payload=%s", got.Found, got.Payload)
	}
}

func TestEmbed_DisabledPassesThrough(t *testing.T) {
	srv := newTestServer(t)
	src := dataurl.Encode("image/png", pngBytes(t, 4, 4))
	resp := postJSON(t, srv.URL+"/api/embed", map[string]any{"image": src, "payload": 1, "enabled": false})
	var out imageBody
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Image != src {
		t.Error("disabled embed changed the image")
	}
}

func TestExtract_Absent(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/extract", "application/octet-stream", bytes.NewReader(pngBytes(t, 2, 2)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got extractResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusOK || got.Found {
		t.Errorf("status %d found %v", resp.StatusCode, got.Found)
	}
}

func TestCombine(t *testing.T) {
	srv := newTestServer(t)
	a := dataurl.Encode("image/png", pngBytes(t, 30, 20))
	b := dataurl.Encode("image/png", pngBytes(t, 30, 20))

	resp := postJSON(t, srv.URL+"/api/combine", map[string]any{
		"items": []compositor.Item{{URL: a}, {URL: b}},
		"spec":  map[string]any{"layout": "horizontal", "gap": 4},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out imageBody
	json.NewDecoder(resp.Body).Decode(&out)
	d, err := dataurl.Parse(out.Image)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(d.Data))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got != image.Pt(30+30+4+2*4, 20+2*4) {
		t.Errorf("size %v", got)
	}
}

func TestCombine_Errors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		body any
		want int
	}{
		{"no items", map[string]any{"items": []any{}}, http.StatusBadRequest},
		{"unknown preset", map[string]any{"preset": "poster", "items": []compositor.Item{{URL: "x"}}}, http.StatusBadRequest},
		{"local file", map[string]any{"items": []compositor.Item{{URL: "/etc/passwd"}}}, http.StatusUnprocessableEntity},
		{"bad layout", map[string]any{"spec": map[string]any{"layout": "diagonal"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := postJSON(t, srv.URL+"/api/combine", tt.body)
		if resp.StatusCode != tt.want {
			t.Errorf("%s: status %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)
	sess := map[string]any{
		"inputImages": []map[string]string{
			{"url": dataurl.Encode("image/png", pngBytes(t, 2, 2)), "filename": "trang-phuc-goc", "folder": "input"},
		},
		"historicalImages": []any{
			dataurl.Encode("image/jpeg", []byte("jpeg")),
			map[string]string{"url": "blob:http://localhost/gone"},
		},
		"zipFilename":        "ket-qua.zip",
		"baseOutputFilename": "thiet-ke",
	}
	resp := postJSON(t, srv.URL+"/api/export", sess)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "ket-qua.zip") {
		t.Errorf("disposition %q", cd)
	}
	if resp.Header.Get("X-Apix-Failures") != "1" {
		t.Errorf("failures header %q", resp.Header.Get("X-Apix-Failures"))
	}

	data, _ := io.ReadAll(resp.Body)
	entries, err := archive.ReadZip(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Path != "input/trang-phuc-goc.png" || entries[1].Path != "output/thiet-ke-1.jpeg" {
		t.Errorf("entries %v", entries)
	}
}

func TestExport_Empty(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/export", map[string]any{})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestBodyLimit(t *testing.T) {
	srv := httptest.NewServer(New(Config{MaxBodyBytes: 64, Logger: quiet}))
	defer srv.Close()
	big := strings.Repeat("A", 1024)
	resp := postJSON(t, srv.URL+"/api/embed", map[string]string{"image": big})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := New(Config{Logger: quiet})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("err = %v", err)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/embed")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status %d", resp.StatusCode)
	}
}
