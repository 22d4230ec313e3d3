package domain

import "time"

// MatchRecord is the frozen input to the award engine, built once when a
// match is judged over. It is never mutated after construction.
type MatchRecord struct {
	ServerID         int64         `json:"server_id"`
	ServerName       string        `json:"server_name"`
	MatchUUID        string        `json:"match_uuid"`
	MapName          string        `json:"map_name"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          time.Time     `json:"ended_at"`
	EndReason        string        `json:"end_reason"`
	AlliedScore      int           `json:"allied_score"`
	AxisScore        int           `json:"axis_score"`
	Players          []PlayerScore `json:"players"`
	SupportAvailable bool          `json:"support_available"`
}

// MatchSummary is a finished match as stored and served by the API.
type MatchSummary struct {
	ID          int64         `json:"id"`
	UUID        string        `json:"uuid"`
	ServerID    int64         `json:"server_id"`
	ServerName  string        `json:"server_name"`
	MapName     string        `json:"map_name"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	EndReason   string        `json:"end_reason,omitempty"`
	AlliedScore int           `json:"allied_score"`
	AxisScore   int           `json:"axis_score"`
	Players     []PlayerScore `json:"players,omitempty"`
}

// LeaderboardEntry aggregates a player's totals across stored matches.
type LeaderboardEntry struct {
	PlayerID     string `json:"player_id"`
	Name         string `json:"name"`
	TotalKills   int    `json:"total_kills"`
	TotalSupport int    `json:"total_support"`
	Matches      int    `json:"matches"`
	Awards       int    `json:"awards"`
}
