package archive

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadFunc constructs a Writer. It may be slow or fail.
type LoadFunc func(ctx context.Context) (Writer, error)

// Provider hands out a lazily constructed Writer. Concurrent callers share a
// single in-flight load; a successful result is kept for the life of the
// Provider, a failed one is retried on the next call.
type Provider struct {
	load LoadFunc
	sf   singleflight.Group

	mu     sync.RWMutex
	writer Writer
}

func NewProvider(load LoadFunc) *Provider {
	return &Provider{load: load}
}

// Static returns a Provider that always yields w.
func Static(w Writer) *Provider {
	return &Provider{writer: w}
}

// Get returns the Writer, loading it on first use.
func (p *Provider) Get(ctx context.Context) (Writer, error) {
	p.mu.RLock()
	w := p.writer
	p.mu.RUnlock()
	if w != nil {
		return w, nil
	}

	v, err, _ := p.sf.Do("writer", func() (any, error) {
		p.mu.RLock()
		w := p.writer
		p.mu.RUnlock()
		if w != nil {
			return w, nil
		}
		w, err := p.load(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.writer = w
		p.mu.Unlock()
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Writer), nil
}
