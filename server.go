package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes the style, the protocol tiles, layer toggles, health and metrics.
type Server struct {
	httpServer *http.Server
	registry   *Registry
	style      *Style
	layers     map[string]*LayerController
	public     string
}

// NewServer creates the HTTP server. controllers are addressable by layer id
// under /layers/{id}/toggle.
func NewServer(addr, public string, registry *Registry, style *Style, controllers ...*LayerController) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: registry,
		style:    style,
		layers:   make(map[string]*LayerController),
		public:   public,
	}
	for _, c := range controllers {
		s.layers[c.LayerID()] = c
	}

	mux.HandleFunc("GET /tiles/{scheme}/{z}/{x}/{y}", s.handleTile)
	mux.HandleFunc("GET /style.json", s.handleStyle)
	mux.HandleFunc("POST /layers/{id}/toggle", s.handleToggle)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	log.Infof("http server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	scheme := r.PathValue("scheme")
	y := strings.TrimSuffix(r.PathValue("y"), "."+PNG)
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, r.PathValue("z"), r.PathValue("x"), y)

	data, err := s.registry.Fetch(r.Context(), url)
	switch {
	case errors.Is(err, ErrMalformedAddress):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrUnknownScheme):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("tile %s error ~ %s", url, err)
		http.Error(w, "tile error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}

func (s *Server) handleStyle(w http.ResponseWriter, _ *http.Request) {
	data, err := s.style.MarshalFor(s.public, s.registry.Schemes())
	if err != nil {
		log.Errorf("marshal style error ~ %s", err)
		http.Error(w, "style error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	c, ok := s.layers[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown layer"})
		return
	}
	visible := c.ToggleVisibility(s.style)
	writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
