// Package server exposes embed, extract, combine and export over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/AnyUserName/apix-cli/internal/compositor"
	"github.com/AnyUserName/apix-cli/internal/dataurl"
	"github.com/AnyUserName/apix-cli/internal/export"
	"github.com/AnyUserName/apix-cli/internal/metadata"
	"github.com/AnyUserName/apix-cli/internal/preset"
	"github.com/go-chi/chi/v5"
)

// Config holds the collaborators of a Server.
type Config struct {
	Compositor      *compositor.Compositor
	Pipeline        *export.Pipeline
	MetadataEnabled bool
	MaxBodyBytes    int64
	Logger          *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	logger *slog.Logger
	router chi.Router
}

// New creates a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 128 << 20
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(s.limitBody, s.logRequests)
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/embed", s.handleEmbed)
		r.Post("/extract", s.handleExtract)
		r.Post("/combine", s.handleCombine)
		r.Post("/export", s.handleExport)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type embedRequest struct {
	Image   string          `json:"image"`
	Payload json.RawMessage `json:"payload"`
	Enabled *bool           `json:"enabled,omitempty"`
}

type imageBody struct {
	Image string `json:"image"`
}

// POST /api/embed
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}
	enabled := s.cfg.MetadataEnabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("null")
	}

	out, err := metadata.Embed(req.Image, req.Payload, enabled)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, imageBody{Image: out})
}

type extractResponse struct {
	Found   bool            `json:"found"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// POST /api/extract takes either raw PNG bytes or {"image": "<data url>"}.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var png []byte
	if isJSON(r) {
		var req imageBody
		if !s.decode(w, r, &req) {
			return
		}
		d, err := parseImage(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		png = d
	} else {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
			return
		}
		png = b
	}

	payload, ok := metadata.Extract(png)
	writeJSON(w, http.StatusOK, extractResponse{Found: ok, Payload: payload})
}

type combineRequest struct {
	Preset string            `json:"preset,omitempty"`
	Items  []compositor.Item `json:"items"`
	Spec   *compositor.Spec  `json:"spec,omitempty"`
}

// POST /api/combine
func (s *Server) handleCombine(w http.ResponseWriter, r *http.Request) {
	var req combineRequest
	if !s.decode(w, r, &req) {
		return
	}
	spec, err := resolveSpec(req.Preset, req.Spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.cfg.Compositor.Combine(r.Context(), req.Items, spec)
	switch {
	case errors.Is(err, compositor.ErrNoImages):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Warn("combine failed", "items", len(req.Items), "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, imageBody{Image: out})
}

// POST /api/export answers with the zip as an attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var sess export.Session
	if !s.decode(w, r, &sess) {
		return
	}
	res, err := s.cfg.Pipeline.Package(r.Context(), sess)
	switch {
	case errors.Is(err, export.ErrNothingToExport):
		writeError(w, http.StatusUnprocessableEntity, "No images to download.")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	w.Header().Set("X-Apix-Entries", fmt.Sprint(len(res.Entries)))
	w.Header().Set("X-Apix-Failures", fmt.Sprint(len(res.Report.Failures)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// resolveSpec prefers an explicit spec and falls back to the named preset.
func resolveSpec(name string, spec *compositor.Spec) (compositor.Spec, error) {
	if spec != nil {
		return *spec, nil
	}
	p, ok := preset.Get(name)
	if !ok {
		return compositor.Spec{}, fmt.Errorf("unknown preset %q", name)
	}
	return p.Spec, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseImage(s string) ([]byte, error) {
	d, err := dataurl.Parse(s)
	if err != nil {
		return nil, err
	}
	return d.Data, nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
