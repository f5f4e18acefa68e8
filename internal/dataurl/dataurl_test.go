package dataurl

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in        string
		mediaType string
		data      string
	}{
		{"data:image/png;base64,aGVsbG8=", "image/png", "hello"},
		{"data:image/png;base64,aGVsbG8", "image/png", "hello"},
		{"data:;base64,aGk=", "text/plain", "hi"},
		{"data:,a%20b", "text/plain", "a b"},
		{"DATA:Image/JPEG;base64,aGk=", "image/jpeg", "hi"},
	}
	for _, tt := range tests {
		d, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if d.MediaType != tt.mediaType {
			t.Errorf("Parse(%q) media type = %q, want %q", tt.in, d.MediaType, tt.mediaType)
		}
		if string(d.Data) != tt.data {
			t.Errorf("Parse(%q) data = %q, want %q", tt.in, d.Data, tt.data)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse("https://example.com/a.png"); !errors.Is(err, ErrNotDataURL) {
		t.Errorf("err = %v, want ErrNotDataURL", err)
	}
	if _, err := Parse("data:image/png;base64"); err == nil {
		t.Error("missing comma accepted")
	}
	if _, err := Parse("data:image/png;base64,!!!notbase64"); err == nil {
		t.Error("bad base64 accepted")
	}
}

func TestEncodeRoundtrip(t *testing.T) {
	s := Encode("image/png", []byte{0x89, 'P', 'N', 'G'})
	if !IsPNG(s) {
		t.Fatalf("Encode produced %q", s)
	}
	d, err := Parse(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if string(d.Data) != "\x89PNG" {
		t.Errorf("data = %q", d.Data)
	}
}

func TestMediaType(t *testing.T) {
	if got := MediaType("data:video/mp4;base64,AAAA"); got != "video/mp4" {
		t.Errorf("got %q", got)
	}
	if got := MediaType("blob:http://localhost/abc"); got != "" {
		t.Errorf("non-data URL: got %q", got)
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"image/png":                "png",
		"image/jpeg":               "jpeg",
		"image/webp":               "webp",
		"image/svg+xml":            "svg",
		"video/mp4":                "mp4",
		"video/quicktime":          "mov",
		"text/plain":               "",
		"application/octet-stream": "",
		"image/png; charset=x":     "png",
		"":                         "",
		"garbage":                  "",
	}
	for in, want := range tests {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}
