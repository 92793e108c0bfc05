package handler

import (
	"encoding/json"
	"net/http"

	"github.com/achievement-engine/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func sessionIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	return id, err == nil
}

// CreateSession opens a session for an account
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	session, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create session", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    session,
	})
}

// GetSession returns a live session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, "get session", err)
		return
	}

	h.writeSuccess(w, session)
}

// DeleteSession ends a session
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.DeleteSession(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, "delete session", err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// PurgeSessions ends every session
func (h *Handler) PurgeSessions(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.PurgeSessions(r.Context())
	if err != nil {
		h.writeServiceError(w, "purge sessions", err)
		return
	}

	h.writeSuccess(w, map[string]int64{"removed": removed})
}
