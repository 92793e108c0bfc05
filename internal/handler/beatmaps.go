package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/achievement-engine/internal/domain"
	"github.com/go-chi/chi/v5"
)

func beatmapIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "beatmapID"), 10, 64)
	return id, err == nil && id > 0
}

// CreateBeatmap stores a new beatmap
func (h *Handler) CreateBeatmap(w http.ResponseWriter, r *http.Request) {
	var beatmap domain.Beatmap
	if err := json.NewDecoder(r.Body).Decode(&beatmap); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	created, err := h.service.CreateBeatmap(r.Context(), beatmap)
	if err != nil {
		h.writeServiceError(w, "create beatmap", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    created,
	})
}

// ListBeatmaps returns one page of beatmaps
func (h *Handler) ListBeatmaps(w http.ResponseWriter, r *http.Request) {
	page := 1
	pageSize := 0
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 {
			pageSize = s
		}
	}

	beatmaps, err := h.service.ListBeatmaps(r.Context(), page, pageSize)
	if err != nil {
		h.writeServiceError(w, "list beatmaps", err)
		return
	}

	h.writeSuccess(w, beatmaps)
}

// LookupBeatmap finds a beatmap by exactly one of md5, filename or id
func (h *Handler) LookupBeatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lookup := domain.BeatmapLookup{
		MD5:      q.Get("md5"),
		Filename: q.Get("filename"),
	}
	if idStr := q.Get("id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		lookup.BeatmapID = id
	}

	beatmap, err := h.service.GetBeatmap(r.Context(), lookup)
	if err != nil {
		h.writeServiceError(w, "lookup beatmap", err)
		return
	}

	h.writeSuccess(w, beatmap)
}

// GetBeatmap returns a beatmap by id
func (h *Handler) GetBeatmap(w http.ResponseWriter, r *http.Request) {
	beatmapID, ok := beatmapIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	beatmap, err := h.service.GetBeatmap(r.Context(), domain.BeatmapLookup{BeatmapID: beatmapID})
	if err != nil {
		h.writeServiceError(w, "get beatmap", err)
		return
	}

	h.writeSuccess(w, beatmap)
}

// UpdateBeatmap applies a partial update
func (h *Handler) UpdateBeatmap(w http.ResponseWriter, r *http.Request) {
	beatmapID, ok := beatmapIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var update domain.BeatmapUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	beatmap, err := h.service.UpdateBeatmap(r.Context(), beatmapID, update)
	if err != nil {
		h.writeServiceError(w, "update beatmap", err)
		return
	}

	h.writeSuccess(w, beatmap)
}
