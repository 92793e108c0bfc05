package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a login session to an account for a fixed window
type Session struct {
	SessionID uuid.UUID `json:"session_id"`
	AccountID uuid.UUID `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the session is past its expiry at t
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// CreateSessionRequest represents a request to open a session for an account
type CreateSessionRequest struct {
	AccountID uuid.UUID `json:"account_id"`
}

// UnlockedAchievement is a persisted award for an account
type UnlockedAchievement struct {
	AccountID     uuid.UUID `json:"account_id"`
	AchievementID int       `json:"achievement_id"`
	ScoreID       int64     `json:"score_id,omitempty"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// UnlockActivity marks the latest award an account received
type UnlockActivity struct {
	AccountID      uuid.UUID `json:"account_id"`
	LastUnlockedAt time.Time `json:"last_unlocked_at"`
}
