/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestLogger: zap structured request log + status metrics
  4. CORS:          Cross-origin requests for the frontend
  5. Identity:      Resolves the authenticated caller (under /api)

ROUTE GROUPS:
  /api/dashboard, /api/ranking*    Ranking surfaces
  /api/history*                    Activity history + exports
  /api/activities, /activity-types Activity logging glue
  /api/periods*, /api/admin/*      Period records and the close action
  /metrics                         Prometheus scrape endpoint
  /healthz                         Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Identity, logging, rate limiting
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a router with all routes configured. The logger
// must be non-nil; metrics on the handler may be nil (the scrape
// endpoint is then omitted).
func NewRouter(h *Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger, h.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// Exports walk the whole table; budget them per caller.
	exportLimiter := NewRateLimiter(1, 5)

	r.Route("/api", func(r chi.Router) {
		r.Use(Identity(h.Users))

		r.Get("/dashboard", h.Dashboard)
		r.Get("/ranking", h.Ranking)
		r.Get("/leaderboard/live", h.LiveLeaderboard)

		r.Get("/history", h.History)

		r.Group(func(r chi.Router) {
			r.Use(exportLimiter.Middleware)
			r.Get("/history/export", h.ExportHistory)
			r.Get("/ranking/export", h.ExportRanking)
		})

		r.Post("/activities", h.LogActivity)
		r.Get("/activity-types", h.ListActivityTypes)
		r.Get("/users", h.ListUsers)

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Get("/{id}/ranking", h.PeriodRanking)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/periods/close", h.ClosePeriod)
		})
	})

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
