package domain

import (
	"time"

	"github.com/google/uuid"
)

// Score is the part of a completed play the achievement rules read
type Score struct {
	ID           int64     `json:"id,omitempty"`
	AccountID    uuid.UUID `json:"account_id"`
	BeatmapMD5   string    `json:"beatmap_md5"`
	Mods         Mods      `json:"mods"`
	GameMode     GameMode  `json:"game_mode"`
	FullCombo    bool      `json:"full_combo"`
	HighestCombo uint32    `json:"highest_combo"`
	TotalScore   int64     `json:"total_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScoreSubmission represents a completed play sent for achievement evaluation
type ScoreSubmission struct {
	SessionID    uuid.UUID `json:"session_id"`
	BeatmapMD5   string    `json:"beatmap_md5"`
	Mods         Mods      `json:"mods"`
	GameMode     GameMode  `json:"game_mode"`
	FullCombo    bool      `json:"full_combo"`
	HighestCombo uint32    `json:"highest_combo"`
	TotalScore   int64     `json:"total_score"`
}

// Validate checks the fields a submission must carry before it is processed
func (s ScoreSubmission) Validate() error {
	if s.SessionID == uuid.Nil || s.BeatmapMD5 == "" || !s.GameMode.Valid() {
		return ErrInvalidRequest
	}
	return nil
}

// ToScore converts a submission to a score owned by accountID
func (s ScoreSubmission) ToScore(accountID uuid.UUID) Score {
	return Score{
		AccountID:    accountID,
		BeatmapMD5:   s.BeatmapMD5,
		Mods:         s.Mods,
		GameMode:     s.GameMode,
		FullCombo:    s.FullCombo,
		HighestCombo: s.HighestCombo,
		TotalScore:   s.TotalScore,
		CreatedAt:    time.Now(),
	}
}

// BatchScoreSubmission represents multiple score submissions
type BatchScoreSubmission struct {
	Scores []ScoreSubmission `json:"scores"`
}
