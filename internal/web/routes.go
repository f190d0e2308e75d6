package web

import (
	"github.com/charukad/traceiq/internal/web/handlers"
	"github.com/charukad/traceiq/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes(svc Services) {
	facesHandler := handlers.NewFacesHandler(svc.Faces)
	identifyHandler := handlers.NewIdentifyHandler(svc.Identifier)

	// Probes (no actor required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if svc.Checks != nil {
		s.router.Get("/api/v1/ready", handlers.NewReadyHandler(svc.Checks).Ready)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor())

		// Identification
		r.Post("/identify", identifyHandler.Identify)

		// Enrollment
		r.Get("/identities/{id}/faces", facesHandler.List)
		r.Post("/identities/{id}/faces", facesHandler.Enroll)
		r.Delete("/identities/{id}/faces/{faceID}", facesHandler.Delete)
		r.Put("/identities/{id}/faces/{faceID}/primary", facesHandler.SetPrimary)

		// Stats
		if svc.Stats != nil {
			r.Get("/stats/identifications", svc.Stats.Identifications)
		}

		// Enrolled images
		if svc.Images != nil {
			r.Get("/images/*", handlers.NewImagesHandler(svc.Images).Get)
		}
	})
}
