package domain

import (
	"time"
)

// RankedStatus represents a beatmap's ranking state
type RankedStatus int

const (
	RankedStatusGraveyard RankedStatus = -2
	RankedStatusWIP       RankedStatus = -1
	RankedStatusPending   RankedStatus = 0
	RankedStatusRanked    RankedStatus = 1
	RankedStatusApproved  RankedStatus = 2
	RankedStatusQualified RankedStatus = 3
	RankedStatusLoved     RankedStatus = 4
)

// Beatmap represents the stored metadata of a single difficulty
type Beatmap struct {
	BeatmapID                   int64        `json:"beatmap_id"`
	BeatmapSetID                int64        `json:"beatmap_set_id"`
	RankedStatus                RankedStatus `json:"ranked_status"`
	BeatmapMD5                  string       `json:"beatmap_md5"`
	Artist                      string       `json:"artist"`
	Title                       string       `json:"title"`
	Version                     string       `json:"version"`
	Creator                     string       `json:"creator"`
	Filename                    string       `json:"filename"`
	TotalLength                 int          `json:"total_length"`
	MaxCombo                    int          `json:"max_combo"`
	RankedStatusManuallyChanged bool         `json:"ranked_status_manually_changed"`
	Plays                       int          `json:"plays"`
	Passes                      int          `json:"passes"`
	Mode                        GameMode     `json:"mode"`
	BPM                         float64      `json:"bpm"`
	CS                          float64      `json:"cs"`
	AR                          float64      `json:"ar"`
	OD                          float64      `json:"od"`
	HP                          float64      `json:"hp"`
	StarRating                  float64      `json:"star_rating"`
	BanchoRankedStatus          RankedStatus `json:"bancho_ranked_status"`
	BanchoUpdatedAt             time.Time    `json:"bancho_updated_at"`
	CreatedAt                   time.Time    `json:"created_at"`
	UpdatedAt                   time.Time    `json:"updated_at"`
}

// BeatmapLookup selects a beatmap by exactly one of its identifying fields
type BeatmapLookup struct {
	MD5       string `json:"beatmap_md5,omitempty"`
	Filename  string `json:"filename,omitempty"`
	BeatmapID int64  `json:"beatmap_id,omitempty"`
}

// Valid reports whether exactly one selector is set
func (l BeatmapLookup) Valid() bool {
	set := 0
	if l.MD5 != "" {
		set++
	}
	if l.Filename != "" {
		set++
	}
	if l.BeatmapID != 0 {
		set++
	}
	return set == 1
}

// BeatmapUpdate carries a partial beatmap update; nil fields are left unchanged
type BeatmapUpdate struct {
	RankedStatus                *RankedStatus `json:"ranked_status,omitempty"`
	BeatmapMD5                  *string       `json:"beatmap_md5,omitempty"`
	Artist                      *string       `json:"artist,omitempty"`
	Title                       *string       `json:"title,omitempty"`
	Version                     *string       `json:"version,omitempty"`
	Creator                     *string       `json:"creator,omitempty"`
	Filename                    *string       `json:"filename,omitempty"`
	TotalLength                 *int          `json:"total_length,omitempty"`
	MaxCombo                    *int          `json:"max_combo,omitempty"`
	RankedStatusManuallyChanged *bool         `json:"ranked_status_manually_changed,omitempty"`
	Plays                       *int          `json:"plays,omitempty"`
	Passes                      *int          `json:"passes,omitempty"`
	Mode                        *GameMode     `json:"mode,omitempty"`
	BPM                         *float64      `json:"bpm,omitempty"`
	CS                          *float64      `json:"cs,omitempty"`
	AR                          *float64      `json:"ar,omitempty"`
	OD                          *float64      `json:"od,omitempty"`
	HP                          *float64      `json:"hp,omitempty"`
	StarRating                  *float64      `json:"star_rating,omitempty"`
	BanchoRankedStatus          *RankedStatus `json:"bancho_ranked_status,omitempty"`
	BanchoUpdatedAt             *time.Time    `json:"bancho_updated_at,omitempty"`
}
