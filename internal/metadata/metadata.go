// Package metadata stores editor session state as JSON inside PNG files.
//
// The payload travels in a tEXt chunk ("aPixSettings\x00<json>") inserted in
// front of IEND, so any PNG reader still accepts the file. Extraction also
// understands uncompressed iTXt chunks carrying the same keyword.
package metadata

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AnyUserName/apix-cli/internal/dataurl"
	"github.com/AnyUserName/apix-cli/internal/pngchunk"
)

// Keyword identifies apix session chunks.
const Keyword = "aPixSettings"

// Logger receives warnings about skipped chunks. Defaults to slog.Default().
var Logger *slog.Logger

func logger() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}

// Marshal serializes v as compact JSON without HTML escaping, the same
// bytes a browser's JSON.stringify produces for plain values.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// TextChunkData returns the tEXt chunk body for payload.
func TextChunkData(payload any) ([]byte, error) {
	js, err := Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	data := make([]byte, 0, len(Keyword)+1+len(js))
	data = append(data, Keyword...)
	data = append(data, 0)
	return append(data, js...), nil
}

// EmbedPNG returns a copy of png with payload stored in front of IEND.
// It returns pngchunk.ErrChunkNotFound when the stream has no IEND.
func EmbedPNG(png []byte, payload any) ([]byte, error) {
	data, err := TextChunkData(payload)
	if err != nil {
		return nil, err
	}
	return pngchunk.InsertBeforeEnd(png, pngchunk.TypeTEXT, data)
}

// Embed stores payload in a PNG data URL. The input is returned unchanged
// when enabled is false, when it is not a base64 PNG data URL, or when the
// PNG has no IEND chunk. Only an undecodable payload is an error.
func Embed(imageDataURL string, payload any, enabled bool) (string, error) {
	if !enabled || !dataurl.IsPNG(imageDataURL) {
		return imageDataURL, nil
	}
	d, err := dataurl.Parse(imageDataURL)
	if err != nil {
		return "", fmt.Errorf("decode png data url: %w", err)
	}

	out, err := EmbedPNG(d.Data, payload)
	if errors.Is(err, pngchunk.ErrChunkNotFound) {
		logger().Warn("could not find IEND chunk in PNG, metadata not embedded")
		return imageDataURL, nil
	}
	if err != nil {
		return "", err
	}
	return dataurl.Encode("image/png", out), nil
}

// Extract returns the session payload stored in png. When several chunks
// carry the keyword, the one nearest IEND (the most recent embed) wins.
// ok is false when no readable payload exists.
func Extract(png []byte) (payload json.RawMessage, ok bool) {
	var found json.RawMessage
	it := pngchunk.NewIterator(png)
	for it.Next() {
		c := it.Chunk()
		if js, ok := decodeChunk(c.Type, c.Data, c.Offset); ok {
			found = js
		}
	}
	if it.Err() == nil {
		return found, found != nil
	}

	// Malformed framing: fall back to looking for text chunk types at every
	// byte offset, trusting each candidate's declared length.
	logger().Debug("png framing broken, scanning for metadata", "err", it.Err())
	found = nil
	for i := 0; i+12 <= len(png); i++ {
		typ := string(png[i+4 : i+8])
		if typ != pngchunk.TypeTEXT && typ != pngchunk.TypeITXT {
			continue
		}
		n := int(binary.BigEndian.Uint32(png[i:]))
		start := i + 8
		end := start + n
		if n < 0 || end > len(png) || end < start {
			end = len(png)
		}
		if js, ok := decodeChunk(typ, png[start:end], i); ok {
			found = js
		}
	}
	return found, found != nil
}

// ExtractReader reads r fully and extracts the payload. The only error is a
// failure to read r.
func ExtractReader(r io.Reader) (json.RawMessage, bool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read png: %w", err)
	}
	js, ok := Extract(data)
	return js, ok, nil
}

// ExtractFile extracts the payload from the PNG at path.
func ExtractFile(path string) (json.RawMessage, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read png: %w", err)
	}
	js, ok := Extract(data)
	return js, ok, nil
}

// decodeChunk returns the JSON text of a tEXt/iTXt chunk body whose keyword
// is Keyword.
func decodeChunk(typ string, data []byte, offset int) (json.RawMessage, bool) {
	if typ != pngchunk.TypeTEXT && typ != pngchunk.TypeITXT {
		return nil, false
	}
	if len(data) <= len(Keyword) || string(data[:len(Keyword)]) != Keyword || data[len(Keyword)] != 0 {
		return nil, false
	}
	text := data[len(Keyword)+1:]

	if typ == pngchunk.TypeITXT {
		if len(text) < 2 {
			return nil, false
		}
		if text[0] != 0 || text[1] != 0 {
			logger().Warn("compressed iTXt chunk is not supported, skipping", "offset", offset)
			return nil, false
		}
		text = text[2:]
		// language tag, then translated keyword, both NUL-terminated
		for i := 0; i < 2; i++ {
			j := bytes.IndexByte(text, 0)
			if j < 0 {
				text = nil
				break
			}
			text = text[j+1:]
		}
	}

	if !json.Valid(text) {
		logger().Error("found metadata keyword but failed to parse JSON", "offset", offset, "type", typ)
		return nil, false
	}
	return json.RawMessage(bytes.Clone(text)), true
}
