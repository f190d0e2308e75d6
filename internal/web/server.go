// Package web exposes the recognition engines over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charukad/traceiq/internal/constants"
	"github.com/charukad/traceiq/internal/event"
	"github.com/charukad/traceiq/internal/web/handlers"
	"github.com/charukad/traceiq/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

var log = event.Log

// Services are the collaborators the HTTP surface is built on.
// Images and Checks are optional. A zero CORS admits no cross-origin callers.
type Services struct {
	Faces      handlers.FaceManager
	Identifier handlers.Identifier
	Stats      *handlers.StatsHandler
	Images     handlers.ImageResolver
	Checks     map[string]handlers.CheckFunc
	CORS       middleware.CORSOptions
}

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(svc Services, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{Logger: log, NoColor: true}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(constants.RequestTimeout))
	r.Use(middleware.CORS(svc.CORS))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes(svc)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute, // uploads
		WriteTimeout:      constants.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	log.Infof("web: listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("web: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
