package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"evalgate/internal/audit"
	"evalgate/internal/config"
)

// RouterDeps groups the collaborators the router hands requests to.
type RouterDeps struct {
	Gate    *Gate
	Cookies *SessionCookies
	Events  audit.Repository
	// Upstream receives every gated request that no gateway route claims.
	// When nil those requests get a JSON 404.
	Upstream http.Handler
	Metrics  http.Handler
}

// NewRouter wires gateway routes and middleware using chi.
func NewRouter(cfg config.Config, deps RouterDeps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	sessionHandler := NewSessionHandler(deps.Gate, deps.Cookies, deps.Events, logger)

	// Logging out must work even when the session can no longer be verified.
	r.Delete("/api/session", sessionHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(newGateMiddleware(deps.Gate, logger))

		r.Get("/api/session", sessionHandler.Status)
		r.Get("/api/session/events", sessionHandler.Events)

		upstream := deps.Upstream
		if upstream == nil {
			upstream = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusNotFound, "not found")
			})
		}
		r.Handle("/*", upstream)
	})

	return r
}
