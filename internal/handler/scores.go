package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/achievement-engine/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SubmitScore evaluates one play and returns the achievements it unlocked
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var submission domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.SubmitScore(r.Context(), submission)
	if err != nil {
		// an unknown or expired session means the caller is not logged in
		if errors.Is(err, domain.ErrSessionNotFound) {
			h.writeError(w, http.StatusUnauthorized, domain.ErrSessionNotFound)
			return
		}
		h.writeServiceError(w, "submit score", err)
		return
	}

	h.writeSuccess(w, result)
}

// SubmitScoreBatch handles batch score submission
func (h *Handler) SubmitScoreBatch(w http.ResponseWriter, r *http.Request) {
	var batch domain.BatchScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if len(batch.Scores) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	results, err := h.service.SubmitScoreBatch(r.Context(), batch)
	if err != nil {
		h.writeServiceError(w, "submit score batch", err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"received": len(batch.Scores),
		"accepted": len(results),
		"results":  results,
	})
}

// ListAchievements returns the full catalog in evaluation order
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.Catalog())
}

// GetAchievement returns one catalog entry
func (h *Handler) GetAchievement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "achievementID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	def, err := h.service.GetAchievement(id)
	if err != nil {
		h.writeServiceError(w, "get achievement", err)
		return
	}

	h.writeSuccess(w, def)
}

// ListAccountAchievements returns what an account has unlocked
func (h *Handler) ListAccountAchievements(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	owned, err := h.service.ListAccountAchievements(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, "list account achievements", err)
		return
	}

	h.writeSuccess(w, owned)
}
