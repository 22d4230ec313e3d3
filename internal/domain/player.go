package domain

// PlayerScore is one player's match-scoped counters. Players are keyed by
// their stable CRCON player ID; the display name is whatever was last
// observed and carries no identity.
type PlayerScore struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Kills    int    `json:"kills"`
	Support  int    `json:"support"`

	// Order is the observation sequence within the current match, used as
	// the deterministic tie-break when metrics are equal.
	Order int `json:"order"`
}
