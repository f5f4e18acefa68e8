// Package dataurl parses and builds RFC 2397 data URLs.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// PNGPrefix is the exact prefix of a base64 PNG data URL.
const PNGPrefix = "data:image/png;base64,"

var ErrNotDataURL = errors.New("dataurl: not a data URL")

// DataURL is a decoded data URL.
type DataURL struct {
	MediaType string // e.g. "image/png"; defaults to text/plain
	Base64    bool
	Data      []byte
}

// IsDataURL reports whether s uses the data: scheme.
func IsDataURL(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// IsPNG reports whether s is a base64 PNG data URL.
func IsPNG(s string) bool {
	return strings.HasPrefix(s, PNGPrefix)
}

// Parse decodes a data URL. Base64 payloads accept both padded and
// unpadded encodings; other payloads are percent-decoded.
func Parse(s string) (*DataURL, error) {
	if !IsDataURL(s) {
		return nil, ErrNotDataURL
	}
	header, payload, ok := strings.Cut(s[5:], ",")
	if !ok {
		return nil, fmt.Errorf("dataurl: missing comma")
	}

	d := &DataURL{MediaType: "text/plain"}
	params := strings.Split(header, ";")
	if params[0] != "" {
		d.MediaType = strings.ToLower(strings.TrimSpace(params[0]))
	}
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			d.Base64 = true
		}
	}

	if d.Base64 {
		data, err := decodeBase64(payload)
		if err != nil {
			return nil, fmt.Errorf("dataurl: decode base64: %w", err)
		}
		d.Data = data
		return d, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("dataurl: unescape: %w", err)
	}
	d.Data = []byte(text)
	return d, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Encode builds a base64 data URL.
func Encode(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// MediaType returns the media type of a data URL without decoding the
// payload, or "" if s is not a data URL.
func MediaType(s string) string {
	if !IsDataURL(s) {
		return ""
	}
	header, _, _ := strings.Cut(s[5:], ",")
	mt, _, _ := strings.Cut(header, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// Extension maps a MIME type to a file extension without the dot, using the
// subtype ("image/jpeg" → "jpeg"). Structured suffixes are dropped
// ("image/svg+xml" → "svg"). Returns "" when nothing can be derived.
func Extension(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	_, sub, ok := strings.Cut(mt, "/")
	if !ok || sub == "" || sub == "*" {
		return ""
	}
	if base, _, ok := strings.Cut(sub, "+"); ok {
		sub = base
	}
	switch sub {
	case "octet-stream", "plain":
		return ""
	case "quicktime":
		return "mov"
	}
	return sub
}
