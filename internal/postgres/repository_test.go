package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/achievement-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestRepository starts a throwaway PostgreSQL, runs the migrations and returns a repository on it
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("achievements"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := &Repository{pool: pool, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, repo.RunMigrations(ctx))
	// migrations are idempotent
	require.NoError(t, repo.RunMigrations(ctx))
	return repo
}

func testBeatmap(id int64) domain.Beatmap {
	return domain.Beatmap{
		BeatmapID:    id,
		BeatmapSetID: id / 10,
		BeatmapMD5:   fmt.Sprintf("%032d", id),
		Artist:       "xi",
		Title:        "Blue Zenith",
		Version:      fmt.Sprintf("diff %d", id),
		Filename:     fmt.Sprintf("%d.osu", id),
		Mode:         domain.ModeOsu,
		StarRating:   float64(id%10) + 0.5,
	}
}

func testScore(accountID uuid.UUID) domain.Score {
	return domain.Score{
		AccountID:    accountID,
		BeatmapMD5:   fmt.Sprintf("%032d", 1),
		Mods:         domain.Hidden,
		GameMode:     domain.ModeOsu,
		FullCombo:    true,
		HighestCombo: 600,
		TotalScore:   1_000_000,
	}
}

func unlockedIDs(rows []domain.UnlockedAchievement) []int {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.AchievementID
	}
	sort.Ints(ids)
	return ids
}

func countScores(t *testing.T, repo *Repository, accountID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, repo.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM scores WHERE account_id = $1`, accountID).Scan(&n))
	return n
}

func TestRepository(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// --- beatmaps ---

	t.Run("beatmaps are found by exactly one selector", func(t *testing.T) {
		created, err := repo.CreateBeatmap(ctx, testBeatmap(101))
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		for _, lookup := range []domain.BeatmapLookup{
			{MD5: created.BeatmapMD5},
			{Filename: created.Filename},
			{BeatmapID: created.BeatmapID},
		} {
			found, err := repo.FetchBeatmap(ctx, lookup)
			require.NoError(t, err)
			assert.Equal(t, int64(101), found.BeatmapID)
		}

		_, err = repo.FetchBeatmap(ctx, domain.BeatmapLookup{BeatmapID: 9999})
		assert.ErrorIs(t, err, domain.ErrBeatmapNotFound)
	})

	t.Run("duplicate beatmaps are conflicts", func(t *testing.T) {
		_, err := repo.CreateBeatmap(ctx, testBeatmap(102))
		require.NoError(t, err)

		_, err = repo.CreateBeatmap(ctx, testBeatmap(102))
		assert.ErrorIs(t, err, domain.ErrBeatmapExists)

		sameMD5 := testBeatmap(103)
		sameMD5.BeatmapMD5 = testBeatmap(102).BeatmapMD5
		_, err = repo.CreateBeatmap(ctx, sameMD5)
		assert.ErrorIs(t, err, domain.ErrBeatmapExists)

		_, err = repo.CreateBeatmap(ctx, testBeatmap(104))
		require.NoError(t, err)
		taken := testBeatmap(102).BeatmapMD5
		_, err = repo.UpdateBeatmap(ctx, 104, domain.BeatmapUpdate{BeatmapMD5: &taken})
		assert.ErrorIs(t, err, domain.ErrBeatmapExists)
	})

	t.Run("partial update only touches the given columns", func(t *testing.T) {
		before, err := repo.CreateBeatmap(ctx, testBeatmap(105))
		require.NoError(t, err)

		ranked := domain.RankedStatus(2)
		stars := 7.25
		after, err := repo.UpdateBeatmap(ctx, 105, domain.BeatmapUpdate{RankedStatus: &ranked, StarRating: &stars})
		require.NoError(t, err)
		assert.Equal(t, ranked, after.RankedStatus)
		assert.Equal(t, stars, after.StarRating)
		assert.Equal(t, before.Title, after.Title)
		assert.Equal(t, before.BeatmapMD5, after.BeatmapMD5)
		assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))

		_, err = repo.UpdateBeatmap(ctx, 9999, domain.BeatmapUpdate{RankedStatus: &ranked})
		assert.ErrorIs(t, err, domain.ErrBeatmapNotFound)
	})

	t.Run("beatmaps are listed in id order by page", func(t *testing.T) {
		first, err := repo.ListBeatmaps(ctx, 1, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Less(t, first[0].BeatmapID, first[1].BeatmapID)

		second, err := repo.ListBeatmaps(ctx, 2, 2)
		require.NoError(t, err)
		require.NotEmpty(t, second)
		assert.Greater(t, second[0].BeatmapID, first[1].BeatmapID)
	})

	// --- plays and unlocks ---

	t.Run("a play stores the score and reports only new unlocks", func(t *testing.T) {
		accountID := uuid.New()

		scoreID, inserted, err := repo.RecordPlay(ctx, testScore(accountID), []int{1, 11, 21, 74})
		require.NoError(t, err)
		assert.Positive(t, scoreID)
		assert.Equal(t, []int{1, 11, 21, 74}, inserted)

		secondID, inserted, err := repo.RecordPlay(ctx, testScore(accountID), []int{74, 76})
		require.NoError(t, err)
		assert.Greater(t, secondID, scoreID)
		assert.Equal(t, []int{76}, inserted)

		rows, err := repo.ListUnlocked(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 11, 21, 74, 76}, unlockedIDs(rows))
		assert.Equal(t, 2, countScores(t, repo, accountID))
	})

	t.Run("a play with nothing to unlock still stores the score", func(t *testing.T) {
		accountID := uuid.New()
		_, inserted, err := repo.RecordPlay(ctx, testScore(accountID), nil)
		require.NoError(t, err)
		assert.Empty(t, inserted)
		assert.Equal(t, 1, countScores(t, repo, accountID))
	})

	t.Run("a failed unlock insert rolls back the score", func(t *testing.T) {
		_, err := repo.pool.Exec(ctx, `
			CREATE OR REPLACE FUNCTION reject_unlock() RETURNS trigger AS $$
			BEGIN
				IF NEW.achievement_id = 999 THEN
					RAISE EXCEPTION 'unlock rejected';
				END IF;
				RETURN NEW;
			END
			$$ LANGUAGE plpgsql`)
		require.NoError(t, err)
		_, err = repo.pool.Exec(ctx, `
			CREATE TRIGGER reject_unlock BEFORE INSERT ON account_achievements
			FOR EACH ROW EXECUTE FUNCTION reject_unlock()`)
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = repo.pool.Exec(ctx, `DROP TRIGGER IF EXISTS reject_unlock ON account_achievements`)
		})

		accountID := uuid.New()
		_, _, err = repo.RecordPlay(ctx, testScore(accountID), []int{1, 999})
		require.Error(t, err)

		rows, err := repo.ListUnlocked(ctx, accountID)
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Zero(t, countScores(t, repo, accountID))
	})

	t.Run("concurrent plays award each achievement once", func(t *testing.T) {
		accountID := uuid.New()
		ids := []int{1, 11, 21, 74, 76}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			reported []int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, inserted, err := repo.RecordPlay(ctx, testScore(accountID), ids)
				assert.NoError(t, err)
				mu.Lock()
				reported = append(reported, inserted...)
				mu.Unlock()
			}()
		}
		wg.Wait()

		sort.Ints(reported)
		assert.Equal(t, ids, reported)

		rows, err := repo.ListUnlocked(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, ids, unlockedIDs(rows))
		assert.Equal(t, 8, countScores(t, repo, accountID))
	})

	t.Run("unlock times come from the database clock", func(t *testing.T) {
		accountID := uuid.New()
		var dbNow time.Time
		require.NoError(t, repo.pool.QueryRow(ctx, `SELECT NOW()`).Scan(&dbNow))

		_, _, err := repo.RecordPlay(ctx, testScore(accountID), []int{80})
		require.NoError(t, err)

		rows, err := repo.ListUnlocked(ctx, accountID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].UnlockedAt.Before(dbNow))
	})

	// --- sync listing ---

	t.Run("accounts with tied award times are paged without gaps", func(t *testing.T) {
		tie := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond)
		want := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		for _, accountID := range want {
			_, err := repo.pool.Exec(ctx,
				`INSERT INTO account_achievements (account_id, achievement_id, unlocked_at) VALUES ($1, 1, $2)`,
				accountID, tie)
			require.NoError(t, err)
		}
		sort.Slice(want, func(i, j int) bool { return want[i].String() < want[j].String() })

		since := tie.Add(-time.Second)
		firstPage, err := repo.ListAccountsUnlockedSince(ctx, since, uuid.Nil, 2)
		require.NoError(t, err)
		require.Len(t, firstPage, 2)

		last := firstPage[1]
		secondPage, err := repo.ListAccountsUnlockedSince(ctx, last.LastUnlockedAt, last.AccountID, 2)
		require.NoError(t, err)
		require.Len(t, secondPage, 1)

		got := []uuid.UUID{firstPage[0].AccountID, firstPage[1].AccountID, secondPage[0].AccountID}
		assert.Equal(t, want, got)
		assert.True(t, tie.Equal(secondPage[0].LastUnlockedAt))

		rest, err := repo.ListAccountsUnlockedSince(ctx, tie, secondPage[0].AccountID, 2)
		require.NoError(t, err)
		assert.Empty(t, rest)
	})
}
