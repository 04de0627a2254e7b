// Package server provides the HTTP server for the virtual-set compositor.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/virtualset/internal/engine"
	"github.com/ayusman/virtualset/internal/server/api"
	"github.com/ayusman/virtualset/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    *engine.Engine
	Sink      *FrameSink
}

// Server represents the HTTP server for the virtual-set application.
type Server struct {
	config  Config
	mux     *http.ServeMux
	start   time.Time
	preview *PreviewHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register scene API handler if Store is configured
	if s.config.Store != nil {
		// A typed nil *engine.Engine must not become a non-nil Activator.
		var act api.Activator
		if s.config.Engine != nil {
			act = s.config.Engine
		}
		sceneHandler := api.NewSceneHandler(s.config.Store, act)
		s.mux.Handle("/api/scenes", sceneHandler)
		s.mux.Handle("/api/scenes/", sceneHandler)
	}

	// Register composited output endpoints if a sink is configured
	if s.config.Sink != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Sink))
		s.preview = NewPreviewHandler(s.config.Sink, s.config.Engine)
		s.mux.Handle("/api/preview", s.preview)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.Engine != nil {
		response["engine"] = s.config.Engine.State().String()
		response["frames"] = s.config.Engine.FrameCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Close releases the server's background resources, stopping the preview
// broadcast goroutine when one was started.
func (s *Server) Close() {
	if s.preview != nil {
		s.preview.Close()
	}
}
