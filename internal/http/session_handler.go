package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"evalgate/internal/audit"
	"evalgate/internal/exporter"
)

// SessionHandler exposes the caller's session to the client application.
type SessionHandler struct {
	gate     *Gate
	cookies  *SessionCookies
	events   audit.Repository
	exporter *exporter.CSVExporter
	logger   *slog.Logger
}

// NewSessionHandler returns a handler backed by the gate's view of the caller.
func NewSessionHandler(gate *Gate, cookies *SessionCookies, events audit.Repository, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		gate:     gate,
		cookies:  cookies,
		events:   events,
		exporter: exporter.NewCSVExporter(),
		logger:   logger,
	}
}

// Status reports the identity behind the current session.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.gate.CurrentIdentity(r)
	if !ok {
		if d, found := DecisionFromContext(r.Context()); found && d.Degraded() {
			writeError(w, http.StatusServiceUnavailable, string(d.Failure))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	d, _ := DecisionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"degraded":      d.Degraded(),
		"identity":      identity,
	})
}

// Logout removes the session cookies, if present.
func (h *SessionHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Events lists the caller's recent authentication events as JSON, or as a CSV
// download when format=csv.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.gate.CurrentIdentity(r)
	if !ok {
		if d, found := DecisionFromContext(r.Context()); found && d.Degraded() {
			writeError(w, http.StatusServiceUnavailable, string(d.Failure))
			return
		}
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = value
	}

	events, err := h.events.ListBySubject(r.Context(), identity.ID, limit)
	if err != nil {
		h.logger.Error("list auth events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", h.exporter.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="auth-events.csv"`)
		if err := h.exporter.Export(w, events); err != nil {
			h.logger.Error("export auth events", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
