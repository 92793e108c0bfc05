package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/achievement-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordPlay stores a score and its unlocks in one transaction and returns the score id
// and the achievement ids that were newly inserted. On error nothing is kept.
func (r *Repository) RecordPlay(ctx context.Context, score domain.Score, unlocks []int) (int64, []int, error) {
	var (
		scoreID  int64
		inserted []int
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if scoreID, err = insertScore(ctx, tx, score); err != nil {
			return err
		}
		inserted, err = insertUnlocks(ctx, tx, score.AccountID, scoreID, unlocks)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return scoreID, inserted, nil
}

func insertScore(ctx context.Context, tx pgx.Tx, score domain.Score) (int64, error) {
	query := `
		INSERT INTO scores (account_id, beatmap_md5, mods, game_mode, full_combo, highest_combo, total_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	createdAt := score.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err := tx.QueryRow(ctx, query,
		score.AccountID,
		score.BeatmapMD5,
		int64(score.Mods),
		int16(score.GameMode),
		score.FullCombo,
		int64(score.HighestCombo),
		score.TotalScore,
		createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("recording score: %w", err)
	}
	return id, nil
}

// ListUnlocked returns every achievement an account owns, oldest first
func (r *Repository) ListUnlocked(ctx context.Context, accountID uuid.UUID) ([]domain.UnlockedAchievement, error) {
	query := `
		SELECT account_id, achievement_id, COALESCE(score_id, 0), unlocked_at
		FROM account_achievements
		WHERE account_id = $1
		ORDER BY unlocked_at, achievement_id
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing unlocked achievements: %w", err)
	}
	defer rows.Close()

	unlocked := []domain.UnlockedAchievement{}
	for rows.Next() {
		var (
			u  domain.UnlockedAchievement
			id int32
		)
		if err := rows.Scan(&u.AccountID, &id, &u.ScoreID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scanning unlocked achievement: %w", err)
		}
		u.AchievementID = int(id)
		unlocked = append(unlocked, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing unlocked achievements: %w", err)
	}
	return unlocked, nil
}

// insertUnlocks persists awards and returns the ids that were newly inserted.
// Ids the account already owns are skipped by the primary key. unlocked_at comes
// from the database clock so the sync worker compares like with like.
func insertUnlocks(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, scoreID int64, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return []int{}, nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO account_achievements (account_id, achievement_id, score_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, achievement_id) DO NOTHING
		RETURNING achievement_id
	`
	for _, id := range ids {
		batch.Queue(query, accountID, int32(id), scoreID)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	inserted := make([]int, 0, len(ids))
	for range ids {
		var id int32
		err := br.QueryRow().Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("inserting unlocks: %w", err)
		}
		inserted = append(inserted, int(id))
	}
	return inserted, nil
}

// ListAccountsUnlockedSince returns up to limit accounts whose latest award sorts after the
// (since, after) cursor, ordered by latest award time then account id
func (r *Repository) ListAccountsUnlockedSince(ctx context.Context, since time.Time, after uuid.UUID, limit int) ([]domain.UnlockActivity, error) {
	query := `
		SELECT account_id, MAX(unlocked_at) AS last_unlocked_at
		FROM account_achievements
		GROUP BY account_id
		HAVING MAX(unlocked_at) > $1 OR (MAX(unlocked_at) = $1 AND account_id > $2)
		ORDER BY last_unlocked_at, account_id
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, since, after, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recently unlocked accounts: %w", err)
	}
	defer rows.Close()

	var activity []domain.UnlockActivity
	for rows.Next() {
		var a domain.UnlockActivity
		if err := rows.Scan(&a.AccountID, &a.LastUnlockedAt); err != nil {
			return nil, fmt.Errorf("scanning unlock activity: %w", err)
		}
		activity = append(activity, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing recently unlocked accounts: %w", err)
	}
	return activity, nil
}
