package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/achievement-engine/internal/config"
	"github.com/achievement-engine/internal/domain"
	"github.com/google/uuid"
)

// UnlockSource is the durable record of awards
type UnlockSource interface {
	ListAccountsUnlockedSince(ctx context.Context, since time.Time, after uuid.UUID, limit int) ([]domain.UnlockActivity, error)
	ListUnlocked(ctx context.Context, accountID uuid.UUID) ([]domain.UnlockedAchievement, error)
}

// CacheWriter replaces an account's cached owned set
type CacheWriter interface {
	Store(ctx context.Context, accountID uuid.UUID, ids []int) error
}

// SyncWorker periodically reloads the unlock cache from PostgreSQL for every
// account that gained an award since the previous cycle
type SyncWorker struct {
	source   UnlockSource
	cache    CacheWriter
	config   *config.SyncConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
	now      func() time.Time

	// watermark: the newest (last_unlocked_at, account_id) a completed cycle has read
	lastSync    time.Time
	lastAccount uuid.UUID
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	source UnlockSource,
	cache CacheWriter,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		source: source,
		cache:  cache,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Start begins the background sync process. The first cycle covers awards made after Start.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	if w.lastSync.IsZero() {
		w.lastSync = w.now()
	}
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncRecent(ctx)
		}
	}
}

// syncRecent reloads the cached set of every account with awards after the watermark,
// reading back Overlap before it. The watermark comes from the award timestamps read,
// never from the worker's clock, and only advances when every account synced.
func (w *SyncWorker) syncRecent(ctx context.Context) {
	w.mu.Lock()
	since, sinceAccount := w.lastSync, w.lastAccount
	w.mu.Unlock()

	w.logger.Info("starting unlock cache sync cycle", "since", since)
	startTime := w.now()

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	cursorTime, cursorAccount := since, sinceAccount
	if w.config.Overlap > 0 && !since.IsZero() {
		cursorTime, cursorAccount = since.Add(-w.config.Overlap), uuid.Nil
	}

	syncedCount := 0
	errorCount := 0
	newest, newestAccount := since, sinceAccount

	for {
		activity, err := w.source.ListAccountsUnlockedSince(ctx, cursorTime, cursorAccount, batchSize)
		if err != nil {
			w.logger.Error("failed to list accounts for sync", "error", err)
			// keep the old watermark so the next cycle retries
			return
		}

		for _, a := range activity {
			if err := w.SyncAccount(ctx, a.AccountID); err != nil {
				w.logger.Error("failed to sync account",
					"account_id", a.AccountID,
					"error", err,
				)
				errorCount++
			} else {
				syncedCount++
			}
		}

		if len(activity) > 0 {
			last := activity[len(activity)-1]
			if after(last.LastUnlockedAt, last.AccountID, newest, newestAccount) {
				newest, newestAccount = last.LastUnlockedAt, last.AccountID
			}
			cursorTime, cursorAccount = last.LastUnlockedAt, last.AccountID
		}
		if len(activity) < batchSize {
			break
		}
	}

	// failed accounts are retried next cycle
	if errorCount == 0 {
		w.mu.Lock()
		w.lastSync, w.lastAccount = newest, newestAccount
		w.mu.Unlock()
	}

	w.logger.Info("unlock cache sync cycle completed",
		"duration", w.now().Sub(startTime),
		"synced", syncedCount,
		"errors", errorCount,
		"watermark", newest,
	)
}

// after orders (time, account) cursors the way the listing query does
func after(t time.Time, account uuid.UUID, thanT time.Time, thanAccount uuid.UUID) bool {
	if !t.Equal(thanT) {
		return t.After(thanT)
	}
	return account.String() > thanAccount.String()
}

// SyncAccount replaces an account's cached owned set with the stored one
func (w *SyncWorker) SyncAccount(ctx context.Context, accountID uuid.UUID) error {
	rows, err := w.source.ListUnlocked(ctx, accountID)
	if err != nil {
		return err
	}

	ids := make([]int, len(rows))
	for i, row := range rows {
		ids[i] = row.AchievementID
	}

	if err := w.cache.Store(ctx, accountID, ids); err != nil {
		return err
	}

	w.logger.Debug("synced account unlock cache",
		"account_id", accountID,
		"count", len(ids),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful for manual triggers).
// Before Start it reloads every account with awards.
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.syncRecent(ctx)
}
