// Package api provides the HTTP API server and handlers for the Quill
// tagging service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quillapp/quill-server/internal/search"
	"github.com/quillapp/quill-server/internal/store"
	"github.com/quillapp/quill-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    *store.Store
	index    *search.TagIndex
	services *Services
	router   *chi.Mux
	api      huma.API
	validate *validation.Validator
	logger   *slog.Logger
}

// NewServer creates an HTTP server with all routes configured. index may
// be nil; the health endpoint reports it as degraded.
func NewServer(st *store.Store, index *search.TagIndex, services *Services, version string, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("Quill Tag API", version)
	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:    st,
		index:    index,
		services: services,
		router:   router,
		api:      humaAPI,
		validate: validation.New(),
		logger:   logger,
	}

	s.registerHealthRoutes()
	s.registerSearchRoutes()
	s.registerTagRoutes()
	s.registerTaggingRoutes()
	s.registerEntityRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
