package domain

import "time"

// Event types for WebSocket notifications
const (
	EventServerUpdate = "server_update"
	EventMatchStart   = "match_start"
	EventMatchEnd     = "match_end"
	EventAwardPass    = "award_pass"
)

// Event represents a real-time event for WebSocket broadcast
type Event struct {
	Type      string      `json:"event"`
	ServerID  int64       `json:"server_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MatchStartEvent is sent when a new match identity is observed
type MatchStartEvent struct {
	Map       string `json:"map"`
	MatchUUID string `json:"match_uuid"`
	Skirmish  bool   `json:"skirmish"`
}

// MatchEndEvent is sent when end-of-match is committed
type MatchEndEvent struct {
	Map       string `json:"map"`
	MatchUUID string `json:"match_uuid"`
	EndReason string `json:"end_reason"`
}
