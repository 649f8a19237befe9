// Package router sets up all HTTP routes and middleware chains for the
// FramePress API server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"framepress/internal/handlers"
	"framepress/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(api *handlers.API) chi.Router {
	r := chi.NewRouter()

	// Global middleware applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	// Health check.
	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		// Role vocabulary.
		r.Get("/roles", api.Roles)

		// Templates.
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", api.TemplatesList)
			r.Post("/", api.TemplateCreate)
			r.Get("/{id}", api.TemplateGet)
			r.Get("/{name}/versions/{version}", api.TemplateGetVersion)
		})

		// Compositions and their render lifecycle.
		r.Route("/compositions", func(r chi.Router) {
			r.Post("/", api.CompositionCreate)
			r.Get("/{id}", api.CompositionGet)
			r.Put("/{id}/bindings/{role}", api.Bind)
			r.Delete("/{id}/bindings/{role}", api.Unbind)
			r.Post("/{id}/commit", api.Commit)
			r.Post("/{id}/validate", api.Validate)
			r.Post("/{id}/render", api.Render)
			r.Get("/{id}/outputs", api.Outputs)
			r.Get("/{id}/versions", api.Versions)
			r.Get("/{id}/versions/{version}", api.VersionAt)
		})

		// Outputs and their publish lifecycle.
		r.Route("/outputs", func(r chi.Router) {
			r.Get("/{id}", api.OutputGet)
			r.Post("/{id}/publish", api.OutputPublish)
			r.Post("/{id}/unpublish", api.OutputUnpublish)
			r.Post("/{id}/archive", api.OutputArchive)
			r.Get("/{id}/uploads", api.OutputUploads)
		})

		// Item-scoped views.
		r.Route("/items/{itemID}", func(r chi.Router) {
			r.Get("/compositions", api.CompositionsByItem)
			r.Get("/primary", api.ItemPrimary)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
