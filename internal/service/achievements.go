package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/achievement-engine/internal/achievement"
	"github.com/achievement-engine/internal/domain"
	"github.com/google/uuid"
)

// SessionStore is the session persistence the service needs
type SessionStore interface {
	Create(ctx context.Context, sessionID, accountID uuid.UUID) (*domain.Session, error)
	FetchByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// UnlockCache caches the achievement ids each account owns
type UnlockCache interface {
	Owned(ctx context.Context, accountID uuid.UUID) (achievement.Set, bool, error)
	Store(ctx context.Context, accountID uuid.UUID, ids []int) error
	Add(ctx context.Context, accountID uuid.UUID, ids []int) error
}

// Repository is the durable storage for beatmaps, scores and awards
type Repository interface {
	CreateBeatmap(ctx context.Context, b domain.Beatmap) (*domain.Beatmap, error)
	ListBeatmaps(ctx context.Context, page, pageSize int) ([]domain.Beatmap, error)
	FetchBeatmap(ctx context.Context, lookup domain.BeatmapLookup) (*domain.Beatmap, error)
	UpdateBeatmap(ctx context.Context, beatmapID int64, update domain.BeatmapUpdate) (*domain.Beatmap, error)
	ListUnlocked(ctx context.Context, accountID uuid.UUID) ([]domain.UnlockedAchievement, error)
	// RecordPlay stores the score and its unlocks atomically and returns the score id
	// together with the achievement ids that were newly inserted.
	RecordPlay(ctx context.Context, score domain.Score, unlocks []int) (int64, []int, error)
}

// SubmissionResult reports the stored score and the achievements it unlocked
type SubmissionResult struct {
	ScoreID   int64                    `json:"score_id"`
	AccountID uuid.UUID                `json:"account_id"`
	Unlocked  []achievement.Definition `json:"unlocked"`
}

// AccountAchievement is an owned achievement with its catalog entry
type AccountAchievement struct {
	achievement.Definition
	ScoreID    int64     `json:"score_id,omitempty"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// ScoreService runs submitted scores through the achievement engine and records awards
type ScoreService struct {
	sessions SessionStore
	cache    UnlockCache
	repo     Repository
	engine   *achievement.Engine
	metrics  *Metrics
	logger   *slog.Logger
}

// NewScoreService creates a new score service
func NewScoreService(
	sessions SessionStore,
	cache UnlockCache,
	repo Repository,
	engine *achievement.Engine,
	metrics *Metrics,
	logger *slog.Logger,
) *ScoreService {
	return &ScoreService{
		sessions: sessions,
		cache:    cache,
		repo:     repo,
		engine:   engine,
		metrics:  metrics,
		logger:   logger,
	}
}

// SubmitScore records a score for the session's account and awards every
// achievement it satisfies that the account does not already own.
func (s *ScoreService) SubmitScore(ctx context.Context, submission domain.ScoreSubmission) (*SubmissionResult, error) {
	if err := submission.Validate(); err != nil {
		return nil, err
	}

	session, err := s.sessions.FetchByID(ctx, submission.SessionID)
	if err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("session").Inc()
		return nil, fmt.Errorf("fetching session: %w", err)
	}

	beatmap, err := s.repo.FetchBeatmap(ctx, domain.BeatmapLookup{MD5: submission.BeatmapMD5})
	if err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("beatmap").Inc()
		return nil, fmt.Errorf("fetching beatmap: %w", err)
	}

	score := submission.ToScore(session.AccountID)

	// nothing is written until the play has been evaluated
	owned, err := s.ownedSet(ctx, session.AccountID)
	if err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("owned").Inc()
		return nil, fmt.Errorf("loading owned achievements: %w", err)
	}

	start := time.Now()
	candidates, err := s.engine.Evaluate(session, beatmap, &score, owned)
	s.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("evaluate").Inc()
		return nil, fmt.Errorf("evaluating achievements: %w", err)
	}
	s.metrics.ScoresEvaluated.WithLabelValues(score.GameMode.String()).Inc()

	var inserted []int
	score.ID, inserted, err = s.repo.RecordPlay(ctx, score, candidates)
	if err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("record").Inc()
		return nil, fmt.Errorf("recording play: %w", err)
	}

	if err := s.cache.Add(ctx, session.AccountID, inserted); err != nil {
		s.logger.Warn("failed to update unlock cache",
			"account_id", session.AccountID,
			"error", err,
		)
	}

	// report in catalog order, limited to rows this call actually inserted
	insertedSet := achievement.NewSet(inserted...)
	unlocked := make([]achievement.Definition, 0, len(inserted))
	for _, id := range candidates {
		if !insertedSet.Has(id) {
			continue
		}
		def, _ := s.engine.Registry().Get(id)
		unlocked = append(unlocked, def)
		s.metrics.Unlocks.WithLabelValues(def.Key).Inc()
	}

	if len(unlocked) > 0 {
		s.logger.Info("achievements unlocked",
			"account_id", session.AccountID,
			"score_id", score.ID,
			"count", len(unlocked),
		)
	}

	return &SubmissionResult{
		ScoreID:   score.ID,
		AccountID: session.AccountID,
		Unlocked:  unlocked,
	}, nil
}

// ownedSet reads the account's owned ids from the cache, falling back to the
// repository and refilling the cache on a miss.
func (s *ScoreService) ownedSet(ctx context.Context, accountID uuid.UUID) (achievement.Set, error) {
	owned, found, err := s.cache.Owned(ctx, accountID)
	switch {
	case err != nil:
		s.metrics.UnlockCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("unlock cache read failed, using database", "account_id", accountID, "error", err)
	case found:
		s.metrics.UnlockCacheLookups.WithLabelValues("hit").Inc()
		return owned, nil
	default:
		s.metrics.UnlockCacheLookups.WithLabelValues("miss").Inc()
	}

	rows, err := s.repo.ListUnlocked(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(rows))
	for i, row := range rows {
		ids[i] = row.AchievementID
	}

	if err := s.cache.Store(ctx, accountID, ids); err != nil {
		s.logger.Warn("failed to fill unlock cache", "account_id", accountID, "error", err)
	}
	return achievement.NewSet(ids...), nil
}

// SubmitScoreBatch submits each score independently and returns the results of those that succeeded
func (s *ScoreService) SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) ([]SubmissionResult, error) {
	results := make([]SubmissionResult, 0, len(batch.Scores))
	for _, submission := range batch.Scores {
		result, err := s.SubmitScore(ctx, submission)
		if err != nil {
			s.logger.Error("failed to submit score in batch",
				"session_id", submission.SessionID,
				"beatmap_md5", submission.BeatmapMD5,
				"error", err,
			)
			// Continue processing other scores
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// CreateSession opens a new session for an account
func (s *ScoreService) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	if req.AccountID == uuid.Nil {
		return nil, domain.ErrInvalidRequest
	}
	return s.sessions.Create(ctx, uuid.New(), req.AccountID)
}

// GetSession returns a live session
func (s *ScoreService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	return s.sessions.FetchByID(ctx, sessionID)
}

// DeleteSession ends a session
func (s *ScoreService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, sessionID)
}

// PurgeSessions ends every session and returns how many were removed
func (s *ScoreService) PurgeSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteAll(ctx)
}

// Catalog returns every achievement definition in evaluation order
func (s *ScoreService) Catalog() []achievement.Definition {
	return s.engine.Registry().Definitions()
}

// GetAchievement returns a single achievement definition
func (s *ScoreService) GetAchievement(id int) (achievement.Definition, error) {
	def, ok := s.engine.Registry().Get(id)
	if !ok {
		return achievement.Definition{}, domain.ErrAchievementNotFound
	}
	return def, nil
}

// ListAccountAchievements returns the achievements an account owns, oldest first
func (s *ScoreService) ListAccountAchievements(ctx context.Context, accountID uuid.UUID) ([]AccountAchievement, error) {
	rows, err := s.repo.ListUnlocked(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing account achievements: %w", err)
	}

	owned := make([]AccountAchievement, 0, len(rows))
	for _, row := range rows {
		def, ok := s.engine.Registry().Get(row.AchievementID)
		if !ok {
			s.logger.Warn("account owns an achievement missing from the catalog",
				"account_id", accountID,
				"achievement_id", row.AchievementID,
			)
			continue
		}
		owned = append(owned, AccountAchievement{
			Definition: def,
			ScoreID:    row.ScoreID,
			UnlockedAt: row.UnlockedAt,
		})
	}
	return owned, nil
}

// IsClientError reports whether err was caused by the request rather than the server
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrInvalidInput)
}
