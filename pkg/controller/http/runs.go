package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// RunsHandler exposes workflow runs over the management API
type RunsHandler struct {
	runUC interfaces.RunUseCase
}

// NewRunsHandler creates a new RunsHandler
func NewRunsHandler(runUC interfaces.RunUseCase) *RunsHandler {
	return &RunsHandler{runUC: runUC}
}

// List handles GET /api/v1/runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, goerr.New("invalid limit parameter"), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runUC.ListRuns(ctx, limit)
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// Get handles GET /api/v1/runs/{runID}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.runUC.GetRun(r.Context(), id)
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// Cancel handles POST /api/v1/runs/{runID}/cancel
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	if err := h.runUC.CancelRun(r.Context(), id); err != nil {
		writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
}

// Rerun handles POST /api/v1/runs/{runID}/rerun
func (h *RunsHandler) Rerun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.runUC.RerunRun(r.Context(), id)
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

// runID parses the run ID path parameter; on failure it writes the
// error response and returns false
func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, goerr.New("invalid run ID"), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeRunError maps domain errors to HTTP status codes
func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrRunNotFound):
		writeError(w, err, http.StatusNotFound)
	case errors.Is(err, types.ErrRunNotCancelable), errors.Is(err, types.ErrRunNotFinished):
		writeError(w, err, http.StatusConflict)
	default:
		ctxlog.From(r.Context()).Error("Run API request failed", "error", err)
		writeError(w, err, http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response body
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Can't get context here, so use background context
		ctxlog.From(context.Background()).Error("Failed to encode response", "error", err)
	}
}
