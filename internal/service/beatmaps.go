package service

import (
	"context"
	"math"

	"github.com/achievement-engine/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// CreateBeatmap validates and stores a beatmap
func (s *ScoreService) CreateBeatmap(ctx context.Context, b domain.Beatmap) (*domain.Beatmap, error) {
	if b.BeatmapID <= 0 || b.BeatmapMD5 == "" || !b.Mode.Valid() {
		return nil, domain.ErrInvalidRequest
	}
	if math.IsNaN(b.StarRating) || math.IsInf(b.StarRating, 0) || b.StarRating < 0 {
		return nil, domain.ErrInvalidRequest
	}
	return s.repo.CreateBeatmap(ctx, b)
}

// ListBeatmaps returns one page of beatmaps. Pages start at 1.
func (s *ScoreService) ListBeatmaps(ctx context.Context, page, pageSize int) ([]domain.Beatmap, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.repo.ListBeatmaps(ctx, page, pageSize)
}

// GetBeatmap returns the beatmap selected by exactly one of md5, filename or id
func (s *ScoreService) GetBeatmap(ctx context.Context, lookup domain.BeatmapLookup) (*domain.Beatmap, error) {
	if !lookup.Valid() {
		return nil, domain.ErrInvalidRequest
	}
	return s.repo.FetchBeatmap(ctx, lookup)
}

// UpdateBeatmap applies a partial update to a beatmap
func (s *ScoreService) UpdateBeatmap(ctx context.Context, beatmapID int64, update domain.BeatmapUpdate) (*domain.Beatmap, error) {
	if beatmapID <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	if update.Mode != nil && !update.Mode.Valid() {
		return nil, domain.ErrInvalidRequest
	}
	if update.StarRating != nil {
		r := *update.StarRating
		if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
			return nil, domain.ErrInvalidRequest
		}
	}
	return s.repo.UpdateBeatmap(ctx, beatmapID, update)
}
