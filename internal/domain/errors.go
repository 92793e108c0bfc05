package domain

import "errors"

// Domain errors
var (
	ErrConfiguration       = errors.New("invalid achievement configuration")
	ErrInvalidInput        = errors.New("invalid evaluation input")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionDecode       = errors.New("malformed session record")
	ErrStoreUnavailable    = errors.New("session store unavailable")
	ErrStoreTimeout        = errors.New("session store timed out")
	ErrBeatmapNotFound     = errors.New("beatmap not found")
	ErrBeatmapExists       = errors.New("beatmap already exists")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrBeatmapNotFound) ||
		errors.Is(err, ErrAchievementNotFound)
}
