package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/achievement-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionTTL is both the stamped session lifetime and the Redis key expiry
const SessionTTL = 3600 * time.Second

const (
	sessionKeyPrefix = "server:sessions:"
	sessionWildcard  = "*"
	scanBatchSize    = 100
)

// SessionStore keeps sessions in Redis. Records are never held in process memory.
type SessionStore struct {
	client    *redis.Client
	opTimeout time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSessionStore creates a session store.
// opTimeout bounds each round trip when the caller's context has no deadline.
func NewSessionStore(client *redis.Client, opTimeout time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		client:    client,
		opTimeout: opTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// sessionKey returns the Redis key for a session id or the wildcard
func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// sessionRecord is the stored form: a flat mapping of text fields
type sessionRecord struct {
	SessionID string `json:"session_id"`
	AccountID string `json:"account_id"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func encodeSession(s *domain.Session) ([]byte, error) {
	data, err := json.Marshal(sessionRecord{
		SessionID: s.SessionID.String(),
		AccountID: s.AccountID.String(),
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339Nano),
		CreatedAt: s.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}
	return data, nil
}

func decodeSession(raw []byte) (*domain.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionDecode, err)
	}

	var (
		s   domain.Session
		err error
	)
	if s.SessionID, err = uuid.Parse(rec.SessionID); err != nil {
		return nil, fmt.Errorf("%w: session_id: %w", domain.ErrSessionDecode, err)
	}
	if s.AccountID, err = uuid.Parse(rec.AccountID); err != nil {
		return nil, fmt.Errorf("%w: account_id: %w", domain.ErrSessionDecode, err)
	}
	if s.ExpiresAt, err = time.Parse(time.RFC3339Nano, rec.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: expires_at: %w", domain.ErrSessionDecode, err)
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: created_at: %w", domain.ErrSessionDecode, err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%w: updated_at: %w", domain.ErrSessionDecode, err)
	}
	return &s, nil
}

// storeError classifies a Redis failure as a timeout or as the store being unavailable
func storeError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (s *SessionStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Create stamps a new session and stores it for SessionTTL.
// An existing session with the same id is overwritten.
func (s *SessionStore) Create(ctx context.Context, sessionID, accountID uuid.UUID) (*domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		SessionID: sessionID,
		AccountID: accountID,
		ExpiresAt: now.Add(SessionTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	value, err := encodeSession(session)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, sessionKey(sessionID.String()), value, SessionTTL).Err(); err != nil {
		return nil, storeError("storing session", err)
	}

	s.logger.Debug("session created",
		"session_id", sessionID,
		"account_id", accountID,
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// FetchByID returns the session stored under sessionID.
// A missing or expired key yields domain.ErrSessionNotFound; an unparsable record yields domain.ErrSessionDecode.
func (s *SessionStore) FetchByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.client.Get(ctx, sessionKey(sessionID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, storeError("fetching session", err)
	}

	session, err := decodeSession(raw)
	if err != nil {
		s.logger.Error("corrupt session record", "session_id", sessionID, "error", err)
		return nil, err
	}

	if session.Expired(s.now()) {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a single session
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	removed, err := s.client.Del(ctx, sessionKey(sessionID.String())).Result()
	if err != nil {
		return storeError("deleting session", err)
	}
	if removed == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// DeleteAll removes every stored session and returns how many were removed.
// The operation timeout bounds the whole SCAN/DEL loop, not each round trip.
func (s *SessionStore) DeleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		removed int64
		batch   = make([]string, 0, scanBatchSize)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return storeError("deleting sessions", err)
		}
		removed += n
		batch = batch[:0]
		return nil
	}

	iter := s.client.Scan(ctx, 0, sessionKey(sessionWildcard), scanBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, storeError("scanning sessions", err)
	}
	if err := flush(); err != nil {
		return removed, err
	}

	s.logger.Info("sessions purged", "count", removed)
	return removed, nil
}
