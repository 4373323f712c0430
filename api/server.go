/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/leaves/*        Leave request lifecycle
  /api/plans/*         Meal plan management
  /api/memberships/*   Subscriptions
  /api/off-days/*      Mess closures
  /api/scenarios/*     Demo data
  /healthz             Liveness
  /metrics             Prometheus (when enabled)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions toggles optional surfaces.
type RouterOptions struct {
	EnableMetrics bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/leaves", func(r chi.Router) {
			r.Get("/", h.ListLeaves)
			r.Post("/", h.CreateLeave)
			r.Post("/preview", h.PreviewLeave)
			r.Get("/{id}", h.GetLeave)
			r.Put("/{id}/end-date", h.EditEndDate)
			r.Post("/{id}/approve", h.ApproveLeave)
			r.Post("/{id}/reject", h.RejectLeave)
			r.Post("/{id}/cancel", h.CancelLeave)
			r.Get("/{id}/tracking", h.GetTracking)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
		})

		r.Route("/memberships", func(r chi.Router) {
			r.Get("/", h.ListMemberships)
			r.Post("/", h.CreateMembership)
		})

		r.Route("/off-days", func(r chi.Router) {
			r.Get("/", h.ListOffDays)
			r.Post("/", h.CreateOffDay)
			r.Post("/{id}/cancel", h.CancelOffDay)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", h.Healthz)

	if opts.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
