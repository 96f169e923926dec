package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/orchestrator"
	"github.com/signalsfoundry/rail-corridor-sim/internal/store"
)

// maxBodyBytes bounds request bodies; the only body is a single number.
const maxBodyBytes = 1 << 12

// Handler serves the corridor API routes.
type Handler struct {
	orch *orchestrator.Orchestrator
	log  logging.Logger
}

// PositionRequest is the body of PUT /api/train/{trainID}/position.
type PositionRequest struct {
	Position *float64 `json:"position"`
}

// RecommendationsResponse is the JSON response for GET /api/recommendations.
type RecommendationsResponse struct {
	Recommendations []string `json:"recommendations"`
}

// OptimizationsResponse is the JSON response for GET /api/optimizations.
type OptimizationsResponse struct {
	Runs  []store.OptimizationRun `json:"runs"`
	Count int                     `json:"count"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	Trains    int       `json:"trains"`
	History   string    `json:"history"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Status(r.Context()))
}

// EnableAI handles POST /api/ai/enable.
func (h *Handler) EnableAI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.EnableAI(r.Context()))
}

// DisableAI handles POST /api/ai/disable.
func (h *Handler) DisableAI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.DisableAI(r.Context()))
}

// Optimize handles POST /api/ai/optimize. It answers 409 in manual mode.
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	report, err := h.orch.RunOptimization(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// EmergencyOverride handles POST /api/emergency.
func (h *Handler) EmergencyOverride(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.EmergencyOverride(r.Context()))
}

// UpdatePosition handles PUT /api/train/{trainID}/position.
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	trainID := chi.URLParam(r, "trainID")

	var req PositionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, badRequest("decode body: %v", err))
		return
	}
	if req.Position == nil {
		h.fail(w, r, badRequest("position is required"))
		return
	}

	res, err := h.orch.UpdatePosition(r.Context(), trainID, *req.Position)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetRecommendations handles GET /api/recommendations.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	recs := h.orch.Recommendations(r.Context())
	if recs == nil {
		recs = []string{}
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{Recommendations: recs})
}

// GetOptimizations handles GET /api/optimizations?limit=n, newest first.
func (h *Handler) GetOptimizations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, r, badRequest("limit must be a non-negative integer, got %q", raw))
			return
		}
		limit = n
	}

	runs, err := h.orch.History(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.OptimizationRun{}
	}
	writeJSON(w, http.StatusOK, OptimizationsResponse{Runs: runs, Count: len(runs)})
}

// Health handles GET /health, checking that the decision history answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	snap := h.orch.Fleet().Snapshot()
	resp := HealthResponse{
		Status:    "ok",
		Mode:      string(snap.Mode),
		Trains:    len(snap.Trains),
		History:   "connected",
		Timestamp: time.Now().UTC(),
	}
	code := http.StatusOK
	if _, err := h.orch.History(ctx, 1); err != nil {
		resp.Status = "error"
		resp.History = "disconnected"
		resp.Error = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context(), h.log)
	if code := StatusFor(err); code >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", logging.Err(err))
	} else {
		log.Debug(r.Context(), "request rejected", logging.Int("status", code), logging.Err(err))
	}
	writeError(w, err)
}
