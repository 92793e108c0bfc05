package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/achievement-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE for a unique or primary key conflict
const uniqueViolation = "23505"

// conflictError maps a unique violation on beatmap_id or beatmap_md5 to domain.ErrBeatmapExists
func conflictError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrBeatmapExists, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const beatmapColumns = `
	beatmap_id, beatmap_set_id, ranked_status, beatmap_md5, artist, title, version,
	creator, filename, total_length, max_combo, ranked_status_manually_changed,
	plays, passes, mode, bpm, cs, ar, od, hp, star_rating,
	bancho_ranked_status, bancho_updated_at, created_at, updated_at`

func scanBeatmap(row pgx.Row) (*domain.Beatmap, error) {
	var (
		b                    domain.Beatmap
		ranked, banchoRanked int16
		mode                 int16
	)
	err := row.Scan(
		&b.BeatmapID,
		&b.BeatmapSetID,
		&ranked,
		&b.BeatmapMD5,
		&b.Artist,
		&b.Title,
		&b.Version,
		&b.Creator,
		&b.Filename,
		&b.TotalLength,
		&b.MaxCombo,
		&b.RankedStatusManuallyChanged,
		&b.Plays,
		&b.Passes,
		&mode,
		&b.BPM,
		&b.CS,
		&b.AR,
		&b.OD,
		&b.HP,
		&b.StarRating,
		&banchoRanked,
		&b.BanchoUpdatedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.RankedStatus = domain.RankedStatus(ranked)
	b.BanchoRankedStatus = domain.RankedStatus(banchoRanked)
	b.Mode = domain.GameMode(mode)
	return &b, nil
}

// CreateBeatmap stores a new beatmap and returns it as persisted
func (r *Repository) CreateBeatmap(ctx context.Context, b domain.Beatmap) (*domain.Beatmap, error) {
	if b.BanchoUpdatedAt.IsZero() {
		b.BanchoUpdatedAt = time.Now()
	}

	query := `
		INSERT INTO beatmaps (beatmap_id, beatmap_set_id, ranked_status, beatmap_md5, artist, title,
			version, creator, filename, total_length, max_combo, ranked_status_manually_changed,
			plays, passes, mode, bpm, cs, ar, od, hp, star_rating,
			bancho_ranked_status, bancho_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23)
		RETURNING ` + beatmapColumns

	created, err := scanBeatmap(r.pool.QueryRow(ctx, query,
		b.BeatmapID,
		b.BeatmapSetID,
		int16(b.RankedStatus),
		b.BeatmapMD5,
		b.Artist,
		b.Title,
		b.Version,
		b.Creator,
		b.Filename,
		b.TotalLength,
		b.MaxCombo,
		b.RankedStatusManuallyChanged,
		b.Plays,
		b.Passes,
		int16(b.Mode),
		b.BPM,
		b.CS,
		b.AR,
		b.OD,
		b.HP,
		b.StarRating,
		int16(b.BanchoRankedStatus),
		b.BanchoUpdatedAt,
	))
	if err != nil {
		return nil, conflictError("creating beatmap", err)
	}
	return created, nil
}

// pageOffset converts a 1-based page number into a row offset
func pageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// ListBeatmaps returns one page of beatmaps ordered by id
func (r *Repository) ListBeatmaps(ctx context.Context, page, pageSize int) ([]domain.Beatmap, error) {
	query := `SELECT ` + beatmapColumns + `
		FROM beatmaps
		ORDER BY beatmap_id
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, pageSize, pageOffset(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("listing beatmaps: %w", err)
	}
	defer rows.Close()

	beatmaps := make([]domain.Beatmap, 0, pageSize)
	for rows.Next() {
		b, err := scanBeatmap(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning beatmap: %w", err)
		}
		beatmaps = append(beatmaps, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing beatmaps: %w", err)
	}
	return beatmaps, nil
}

// lookupArgs returns the nullable selector arguments for a lookup
func lookupArgs(lookup domain.BeatmapLookup) (md5, filename *string, beatmapID *int64, err error) {
	if !lookup.Valid() {
		return nil, nil, nil, fmt.Errorf("%w: exactly one of md5, filename or beatmap id is required", domain.ErrInvalidRequest)
	}
	if lookup.MD5 != "" {
		md5 = &lookup.MD5
	}
	if lookup.Filename != "" {
		filename = &lookup.Filename
	}
	if lookup.BeatmapID != 0 {
		beatmapID = &lookup.BeatmapID
	}
	return md5, filename, beatmapID, nil
}

// FetchBeatmap returns the beatmap matching exactly one of md5, filename or id
func (r *Repository) FetchBeatmap(ctx context.Context, lookup domain.BeatmapLookup) (*domain.Beatmap, error) {
	md5, filename, beatmapID, err := lookupArgs(lookup)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + beatmapColumns + `
		FROM beatmaps
		WHERE beatmap_md5 = COALESCE($1, beatmap_md5)
		AND filename = COALESCE($2, filename)
		AND beatmap_id = COALESCE($3, beatmap_id)
		LIMIT 1`

	b, err := scanBeatmap(r.pool.QueryRow(ctx, query, md5, filename, beatmapID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBeatmapNotFound
		}
		return nil, fmt.Errorf("fetching beatmap: %w", err)
	}
	return b, nil
}

func rankedArg(s *domain.RankedStatus) *int16 {
	if s == nil {
		return nil
	}
	v := int16(*s)
	return &v
}

func modeArg(m *domain.GameMode) *int16 {
	if m == nil {
		return nil
	}
	v := int16(*m)
	return &v
}

// UpdateBeatmap applies the non-nil fields of update and bumps updated_at
func (r *Repository) UpdateBeatmap(ctx context.Context, beatmapID int64, update domain.BeatmapUpdate) (*domain.Beatmap, error) {
	query := `
		UPDATE beatmaps
		SET ranked_status = COALESCE($2, ranked_status),
			beatmap_md5 = COALESCE($3, beatmap_md5),
			artist = COALESCE($4, artist),
			title = COALESCE($5, title),
			version = COALESCE($6, version),
			creator = COALESCE($7, creator),
			filename = COALESCE($8, filename),
			total_length = COALESCE($9, total_length),
			max_combo = COALESCE($10, max_combo),
			ranked_status_manually_changed = COALESCE($11, ranked_status_manually_changed),
			plays = COALESCE($12, plays),
			passes = COALESCE($13, passes),
			mode = COALESCE($14, mode),
			bpm = COALESCE($15, bpm),
			cs = COALESCE($16, cs),
			ar = COALESCE($17, ar),
			od = COALESCE($18, od),
			hp = COALESCE($19, hp),
			star_rating = COALESCE($20, star_rating),
			bancho_ranked_status = COALESCE($21, bancho_ranked_status),
			bancho_updated_at = COALESCE($22, bancho_updated_at),
			updated_at = NOW()
		WHERE beatmap_id = $1
		RETURNING ` + beatmapColumns

	b, err := scanBeatmap(r.pool.QueryRow(ctx, query,
		beatmapID,
		rankedArg(update.RankedStatus),
		update.BeatmapMD5,
		update.Artist,
		update.Title,
		update.Version,
		update.Creator,
		update.Filename,
		update.TotalLength,
		update.MaxCombo,
		update.RankedStatusManuallyChanged,
		update.Plays,
		update.Passes,
		modeArg(update.Mode),
		update.BPM,
		update.CS,
		update.AR,
		update.OD,
		update.HP,
		update.StarRating,
		rankedArg(update.BanchoRankedStatus),
		update.BanchoUpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBeatmapNotFound
		}
		return nil, conflictError("updating beatmap", err)
	}
	return b, nil
}
