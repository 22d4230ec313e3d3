package domain

import "time"

// Snapshot is the durable per-server tracking state. Saves are whole-snapshot
// replacements; a restored snapshot carries everything needed to resume a
// match without losing accumulated progress.
type Snapshot struct {
	ServerID      int64            `json:"server_id"`
	MatchUUID     string           `json:"match_uuid"`
	MatchID       string           `json:"match_id"` // current match identity (map name token)
	MapName       string           `json:"map_name"`
	MatchStart    *time.Time       `json:"match_start,omitempty"`
	Rewarded      bool             `json:"rewarded"`
	InactiveSince *time.Time       `json:"inactive_since,omitempty"`
	LiveMessageID string           `json:"live_message_id,omitempty"`
	Players       []PlayerSnapshot `json:"players"`
	SavedAt       time.Time        `json:"saved_at"`
}

// PlayerSnapshot persists one player's accumulator together with the
// baseline/offset bookkeeping that makes delta computation restartable.
type PlayerSnapshot struct {
	PlayerID        string `json:"player_id"`
	Name            string `json:"name"`
	Order           int    `json:"order"`
	Kills           int    `json:"kills"`
	Support         int    `json:"support"`
	BaselineKills   int    `json:"baseline_kills"`
	BaselineSupport int    `json:"baseline_support"`
	OffsetKills     int    `json:"offset_kills"`
	OffsetSupport   int    `json:"offset_support"`
	SupportSeen     bool   `json:"support_seen"`
}
