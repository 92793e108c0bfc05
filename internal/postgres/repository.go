package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/achievement-engine/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS beatmaps (
			beatmap_id BIGINT PRIMARY KEY,
			beatmap_set_id BIGINT NOT NULL,
			ranked_status SMALLINT NOT NULL DEFAULT 0,
			beatmap_md5 VARCHAR(32) NOT NULL UNIQUE,
			artist TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT '',
			creator TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL DEFAULT '',
			total_length INT NOT NULL DEFAULT 0,
			max_combo INT NOT NULL DEFAULT 0,
			ranked_status_manually_changed BOOLEAN NOT NULL DEFAULT FALSE,
			plays INT NOT NULL DEFAULT 0,
			passes INT NOT NULL DEFAULT 0,
			mode SMALLINT NOT NULL DEFAULT 0,
			bpm DOUBLE PRECISION NOT NULL DEFAULT 0,
			cs DOUBLE PRECISION NOT NULL DEFAULT 0,
			ar DOUBLE PRECISION NOT NULL DEFAULT 0,
			od DOUBLE PRECISION NOT NULL DEFAULT 0,
			hp DOUBLE PRECISION NOT NULL DEFAULT 0,
			star_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			bancho_ranked_status SMALLINT NOT NULL DEFAULT 0,
			bancho_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id BIGSERIAL PRIMARY KEY,
			account_id UUID NOT NULL,
			beatmap_md5 VARCHAR(32) NOT NULL,
			mods BIGINT NOT NULL DEFAULT 0,
			game_mode SMALLINT NOT NULL,
			full_combo BOOLEAN NOT NULL DEFAULT FALSE,
			highest_combo BIGINT NOT NULL DEFAULT 0,
			total_score BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS account_achievements (
			account_id UUID NOT NULL,
			achievement_id INT NOT NULL,
			score_id BIGINT REFERENCES scores(id) ON DELETE SET NULL,
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (account_id, achievement_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_beatmaps_filename ON beatmaps(filename)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_account ON scores(account_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_account_achievements_unlocked ON account_achievements(unlocked_at)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}
