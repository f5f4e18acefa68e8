package encoder

import (
	"fmt"
	"strings"
)

// Registry holds the output encoders by format name.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry with the built-in encoders.
func NewRegistry() *Registry {
	r := &Registry{
		encoders: make(map[string]Encoder),
	}
	for _, enc := range []Encoder{
		&PNGEncoder{},
		&JPEGEncoder{},
	} {
		r.Register(enc)
	}
	return r
}

// Register adds or replaces an encoder.
func (r *Registry) Register(enc Encoder) {
	r.encoders[enc.Format()] = enc
}

// Get returns an encoder for the given format, or nil if unknown.
// "jpg" and MIME types ("image/png") are accepted as aliases.
func (r *Registry) Get(format string) Encoder {
	f := strings.ToLower(strings.TrimSpace(format))
	f = strings.TrimPrefix(f, "image/")
	if f == "jpg" {
		f = "jpeg"
	}
	return r.encoders[f]
}

// Lookup is Get with an error for unknown formats. An empty format selects PNG.
func (r *Registry) Lookup(format string) (Encoder, error) {
	if format == "" {
		format = "png"
	}
	enc := r.Get(format)
	if enc == nil {
		return nil, fmt.Errorf("unsupported output format %q (have %s)", format, strings.Join(r.Available(), ", "))
	}
	return enc, nil
}

// Available returns all format names in priority order.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range []string{"png", "jpeg"} {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}
