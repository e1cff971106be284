package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/drawvault/internal/domain"
	"github.com/rpattn/drawvault/internal/lock"
	"github.com/rpattn/drawvault/internal/repository"
)

// Handler exposes locks, field edits and lifecycle transitions over HTTP.
type Handler struct {
	service  *Service
	locks    *lock.Manager
	drawings repository.DrawingRepository
}

// NewHTTPHandler wires the lifecycle endpoints.
func NewHTTPHandler(service *Service, locks *lock.Manager, drawings repository.DrawingRepository) *Handler {
	return &Handler{service: service, locks: locks, drawings: drawings}
}

type lockRequest struct {
	UserID     string `json:"userId"`
	TTLSeconds int    `json:"ttlSeconds"`
}

type updateRequest struct {
	UserID  string            `json:"userId"`
	Changes map[string]string `json:"changes"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

// AcquireLock handles POST /drawings/{id}/lock.
func (h *Handler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	acquired, err := h.locks.Acquire(r.Context(), id, req.UserID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"holder":           held.Holder,
				"remainingSeconds": int(held.Remaining.Seconds()),
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, acquired)
}

// ReleaseLock handles DELETE /drawings/{id}/lock.
func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if err := h.locks.Release(r.Context(), id, userID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LockStatus handles GET /drawings/{id}/lock.
func (h *Handler) LockStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	status, err := h.locks.IsLocked(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if status == nil {
		writeJSON(w, http.StatusOK, map[string]any{"locked": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locked":           true,
		"holder":           status.Holder,
		"remainingSeconds": int(status.Remaining.Seconds()),
	})
}

// UpdateFields handles PATCH /drawings/{id}.
func (h *Handler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || len(req.Changes) == 0 {
		http.Error(w, "userId and changes are required", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateFields(r.Context(), id, req.UserID, req.Changes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type outcomeRequest struct {
	Outcome string                  `json:"outcome"`
	Results *domain.AnalysisResults `json:"results,omitempty"`
}

// BeginAnalysis handles POST /drawings/{id}/analysis. The extraction
// pipeline calls it when it picks a drawing up.
func (h *Handler) BeginAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	updated, err := h.service.BeginAnalysis(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// CompleteAnalysis handles PUT /drawings/{id}/analysis with the pipeline's
// outcome (approved, unapproved or failed) and its extracted results.
func (h *Handler) CompleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	var req outcomeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Outcome == "" {
		http.Error(w, "outcome is required", http.StatusBadRequest)
		return
	}
	updated, err := h.service.CompleteAnalysis(r.Context(), id, domain.Status(req.Outcome), req.Results)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /drawings/{id}. The holder of the live edit lock
// identifies itself with the userId query parameter, as on lock release.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resubmit handles POST /drawings/{id}/resubmit.
func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	h.userTransition(w, r, h.service.Resubmit)
}

// Reopen handles POST /drawings/{id}/reopen.
func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.userTransition(w, r, h.service.Reopen)
}

func (h *Handler) userTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, userID string) (domain.Drawing, error)) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	updated, err := fn(r.Context(), id, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Get handles GET /drawings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	drawing, err := h.drawings.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drawing)
}

// History handles GET /drawings/{id}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := drawingID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func drawingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid drawing id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDrawingNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrNotLockHolder):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
