package service

import (
	"context"
	"math"
	"testing"

	"github.com/achievement-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageRecorder struct {
	*fakeRepo
	page, pageSize int
}

func (p *pageRecorder) ListBeatmaps(ctx context.Context, page, pageSize int) ([]domain.Beatmap, error) {
	p.page, p.pageSize = page, pageSize
	return p.fakeRepo.ListBeatmaps(ctx, page, pageSize)
}

func TestCreateBeatmap(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	valid := domain.Beatmap{BeatmapID: 129891, BeatmapSetID: 39804, BeatmapMD5: "da8aae79c8f3306b5d65ec951874a7fb", Mode: domain.ModeTaiko, StarRating: 4.2}
	created, err := env.service.CreateBeatmap(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, valid.BeatmapMD5, created.BeatmapMD5)

	invalid := []struct {
		name   string
		mutate func(*domain.Beatmap)
	}{
		{"missing id", func(b *domain.Beatmap) { b.BeatmapID = 0 }},
		{"missing md5", func(b *domain.Beatmap) { b.BeatmapMD5 = "" }},
		{"unknown mode", func(b *domain.Beatmap) { b.Mode = domain.GameMode(4) }},
		{"NaN rating", func(b *domain.Beatmap) { b.StarRating = math.NaN() }},
		{"negative rating", func(b *domain.Beatmap) { b.StarRating = -0.1 }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			_, err := env.service.CreateBeatmap(ctx, b)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestListBeatmapsPaging(t *testing.T) {
	tests := []struct {
		name                   string
		page, pageSize         int
		wantPage, wantPageSize int
	}{
		{"explicit values pass through", 3, 20, 3, 20},
		{"zero page becomes first", 0, 20, 1, 20},
		{"missing page size uses default", 1, 0, 1, 50},
		{"page size is capped", 1, 5000, 1, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := &pageRecorder{fakeRepo: env.repo}
			env.service.repo = rec

			_, err := env.service.ListBeatmaps(context.Background(), tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, rec.page)
			assert.Equal(t, tt.wantPageSize, rec.pageSize)
		})
	}
}

func TestGetAndUpdateBeatmap(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("lookup needs exactly one selector", func(t *testing.T) {
		_, err := env.service.GetBeatmap(ctx, domain.BeatmapLookup{})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = env.service.GetBeatmap(ctx, domain.BeatmapLookup{MD5: testMD5, BeatmapID: 75})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		b, err := env.service.GetBeatmap(ctx, domain.BeatmapLookup{BeatmapID: 75})
		require.NoError(t, err)
		assert.Equal(t, testMD5, b.BeatmapMD5)
	})

	t.Run("partial update changes only given fields", func(t *testing.T) {
		rating := 5.5
		b, err := env.service.UpdateBeatmap(ctx, 75, domain.BeatmapUpdate{StarRating: &rating})
		require.NoError(t, err)
		assert.Equal(t, 5.5, b.StarRating)
		assert.Equal(t, testMD5, b.BeatmapMD5)
	})

	t.Run("invalid updates are rejected", func(t *testing.T) {
		bad := math.Inf(1)
		_, err := env.service.UpdateBeatmap(ctx, 75, domain.BeatmapUpdate{StarRating: &bad})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		mode := domain.GameMode(12)
		_, err = env.service.UpdateBeatmap(ctx, 75, domain.BeatmapUpdate{Mode: &mode})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = env.service.UpdateBeatmap(ctx, 0, domain.BeatmapUpdate{})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("unknown beatmap", func(t *testing.T) {
		_, err := env.service.UpdateBeatmap(ctx, 404, domain.BeatmapUpdate{})
		assert.ErrorIs(t, err, domain.ErrBeatmapNotFound)
	})
}
