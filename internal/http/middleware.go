package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"evalgate/internal/auth"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func newSlogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", duration.String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const decisionContextKey contextKey = "gate-decision"

// DecisionFromContext returns the gate decision recorded for the request.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionContextKey).(Decision)
	return d, ok
}

// IdentityFromContext extracts the authenticated identity from the request context.
// Returns false if the gate did not identify the caller.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	d, ok := DecisionFromContext(ctx)
	if !ok || d.Identity == nil {
		return auth.Identity{}, false
	}
	return *d.Identity, true
}

// ContextWithDecision stores d in ctx. Handlers downstream of the gate read it
// through IdentityFromContext.
func ContextWithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionContextKey, d)
}

func newGateMiddleware(gate *Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := gate.Evaluate(r)

			// The client went away while a remote call was in flight; leave
			// the existing cookies untouched.
			if err := r.Context().Err(); err != nil {
				logger.Debug("request aborted during session check", "path", r.URL.Path, "error", err)
				return
			}

			d.Apply(w)

			if d.Outcome == OutcomeRedirect {
				if d.Resolution == ResolutionDenied && wantsJSON(r) {
					w.Header().Set("WWW-Authenticate", "Bearer")
					writeError(w, http.StatusUnauthorized, string(d.Failure))
					return
				}
				http.Redirect(w, r, d.RedirectURL, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithDecision(r.Context(), d)))
		})
	}
}

// wantsJSON reports whether the caller is an API client rather than a browser navigation.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func newSecurityHeadersMiddleware(environment string) func(http.Handler) http.Handler {
	isDev := strings.EqualFold(environment, "development")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")

			if !isDev {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
