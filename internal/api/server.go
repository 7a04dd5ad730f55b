// Package api provides the HTTP API server and handlers for the PixVault server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pixvault/pixvault-server/internal/store/sqlite"
	"github.com/pixvault/pixvault-server/internal/syncer"
	"github.com/pixvault/pixvault-server/internal/validation"
)

// Server holds dependencies for HTTP handlers. Registry reads never
// block on a running sync cycle; SQLite WAL serves them concurrently.
type Server struct {
	store     *sqlite.Store
	engine    *syncer.Engine
	validator *validation.Validator
	router    *chi.Mux
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *sqlite.Store, engine *syncer.Engine, logger *slog.Logger) *Server {
	s := &Server{
		store:     store,
		engine:    engine,
		validator: validation.New(),
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.handleSyncStatus)
			r.Post("/trigger", s.handleSyncTrigger)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handleListItems)
			r.Get("/{id}", s.handleGetItem)
			r.Put("/{id}/tags", s.handleSetCustomTags)
			r.Put("/{id}/rating", s.handleSetRating)
			r.Put("/{id}/ratings/{axisID}", s.handleSetAxisScore)
		})

		r.Route("/axes", func(r chi.Router) {
			r.Get("/", s.handleListAxes)
			r.Post("/", s.handleCreateAxis)
			r.Put("/{id}", s.handleUpdateAxis)
			r.Delete("/{id}", s.handleDeleteAxis)
		})
	})
}
