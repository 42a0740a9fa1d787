// Package v1 provides the REST handlers that observe and control the sync
// engine.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/record-sync/internal/status"
	pkgsync "github.com/stacklok/record-sync/internal/sync"
)

//go:generate mockgen -destination=../mocks/mock_controller.go -package=mocks github.com/stacklok/record-sync/internal/api/v1 Controller

// Controller is the part of the sync engine the API drives.
type Controller interface {
	GetStatus() status.SyncStatus
	TriggerSync(ctx context.Context) error
	SetEnabled(ctx context.Context, enabled bool)
}

// EnabledRequest is the body of PUT /enabled
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// TriggerResponse is returned when a manual sync was accepted
type TriggerResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Routes holds the handlers for the sync API
type Routes struct {
	ctrl Controller
}

// Router creates the router for /api/v1/sync
func Router(ctrl Controller) http.Handler {
	routes := &Routes{ctrl: ctrl}

	r := chi.NewRouter()
	r.Get("/status", routes.getStatus)
	r.Post("/trigger", routes.trigger)
	r.Put("/enabled", routes.setEnabled)
	return r
}

// getStatus handles GET /api/v1/sync/status
func (rr *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, rr.ctrl.GetStatus(), http.StatusOK)
}

// trigger handles POST /api/v1/sync/trigger
func (rr *Routes) trigger(w http.ResponseWriter, r *http.Request) {
	if err := rr.ctrl.TriggerSync(r.Context()); err != nil {
		writeErrorResponse(w, err, triggerStatusCode(err))
		return
	}
	writeJSONResponse(w, TriggerResponse{Status: "queued"}, http.StatusAccepted)
}

// setEnabled handles PUT /api/v1/sync/enabled
func (rr *Routes) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req EnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.New("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.Enabled == nil {
		writeErrorResponse(w, errors.New("enabled is required"), http.StatusBadRequest)
		return
	}

	rr.ctrl.SetEnabled(r.Context(), *req.Enabled)
	writeJSONResponse(w, rr.ctrl.GetStatus(), http.StatusOK)
}

func triggerStatusCode(err error) int {
	switch {
	case errors.Is(err, pkgsync.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, pkgsync.ErrSyncDisabled):
		return http.StatusPreconditionFailed
	case errors.Is(err, pkgsync.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, statusCode int) {
	resp := ErrorResponse{Error: err.Error()}
	var syncErr *pkgsync.Error
	if errors.As(err, &syncErr) {
		resp.Reason = syncErr.Reason
	}
	writeJSONResponse(w, resp, statusCode)
}
