package domain

import "time"

// ServerTarget identifies one monitored CRCON endpoint. The base URL is the
// stable identity; the display name is refreshed once at startup from the
// remote get_status call.
type ServerTarget struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// ServerStatus is the published view of one server's tracking state, safe to
// hand to the API while the tracking loop keeps mutating its own state.
type ServerStatus struct {
	ServerID       int64         `json:"server_id"`
	Name           string        `json:"name"`
	Online         bool          `json:"online"`
	MapName        string        `json:"map_name,omitempty"`
	MatchUUID      string        `json:"match_uuid,omitempty"`
	MatchStart     *time.Time    `json:"match_start,omitempty"`
	Rewarded       bool          `json:"rewarded"`
	Phase          string        `json:"phase"`
	TimerRemaining *float64      `json:"timer_remaining,omitempty"`
	AlliedScore    int           `json:"allied_score"`
	AxisScore      int           `json:"axis_score"`
	PlayerCount    int           `json:"player_count"`
	InactiveSince  *time.Time    `json:"inactive_since,omitempty"`
	Standings      []PlayerScore `json:"standings,omitempty"`
	LastUpdated    time.Time     `json:"last_updated"`
}
