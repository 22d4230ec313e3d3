package domain

import "time"

// Award categories
const (
	AwardKiller  = "killer"
	AwardSupport = "support"
)

// Reasons why a ranked player received no grant
const (
	ReasonAlreadyVIP     = "already_vip"
	ReasonExcluded       = "excluded"
	ReasonAlreadyAwarded = "already_awarded"
	ReasonGrantFailed    = "grant_failed"
)

// AwardEntry is the outcome for one ranked player in one category.
type AwardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Metric   int    `json:"metric"`
	Hours    int    `json:"hours"`

	Granted bool   `json:"granted"`
	Reason  string `json:"reason,omitempty"` // set when Granted is false

	// Expiration is the new VIP expiration after a successful grant on the
	// match's home server. Nil for lifetime holders and failed grants.
	Expiration *time.Time `json:"expiration,omitempty"`
}

// AwardResult describes one complete award pass. It is produced at most once
// per match; the durable "was this match rewarded" record lives in the
// per-server snapshot, not here.
type AwardResult struct {
	PassID           string        `json:"pass_id"`
	ServerID         int64         `json:"server_id"`
	ServerName       string        `json:"server_name"`
	MapName          string        `json:"map_name"`
	Entries          []AwardEntry  `json:"entries"`
	Standings        []PlayerScore `json:"standings"` // top killers, for the operator summary
	SupportAvailable bool          `json:"support_available"`
	CompletedAt      time.Time     `json:"completed_at"`
}

// AwardRecord is one stored award entry as served by the API, joined with
// the pass and match it belongs to.
type AwardRecord struct {
	ID         int64     `json:"id"`
	PassID     string    `json:"pass_id"`
	MatchID    int64     `json:"match_id"`
	ServerID   int64     `json:"server_id"`
	ServerName string    `json:"server_name"`
	MapName    string    `json:"map_name"`
	CreatedAt  time.Time `json:"created_at"`
	AwardEntry
}

// GrantedCount returns how many entries actually received a grant.
func (r AwardResult) GrantedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Granted {
			n++
		}
	}
	return n
}
