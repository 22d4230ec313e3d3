package tracker

import (
	"sort"

	"github.com/kilian558/top-killier-vip/internal/crcon"
	"github.com/kilian558/top-killier-vip/internal/domain"
)

// ScoreTable converts raw scoreboard counters into match-scoped totals for
// one server. The remote counters are cumulative and reset on reconnect, so
// every player carries a baseline (the raw value at match start or after an
// outage) and an offset (progress accumulated before the last re-baseline).
// The merged total is recomputed from those on every observation, which makes
// replaying the same snapshot a no-op.
type ScoreTable struct {
	players   map[string]*playerEntry
	nextOrder int
}

type playerEntry struct {
	name            string
	order           int
	kills           int
	support         int
	baselineKills   int
	baselineSupport int
	offsetKills     int
	offsetSupport   int
	supportSeen     bool
}

// NewScoreTable creates an empty table.
func NewScoreTable() *ScoreTable {
	return &ScoreTable{players: make(map[string]*playerEntry)}
}

// Reset discards all per-match state and captures fresh baselines from the
// snapshot available at match start, so kills left over from a stale read
// never leak into the new match.
func (t *ScoreTable) Reset(snapshot []crcon.ScoreboardPlayer) {
	t.players = make(map[string]*playerEntry)
	t.nextOrder = 0
	for _, p := range snapshot {
		e := t.entry(p.PlayerID, p.Name)
		e.baselineKills = p.Kills
		if p.Support != nil {
			e.baselineSupport = *p.Support
			e.supportSeen = true
		}
	}
}

// Observe merges one raw snapshot into the table. A raw counter below its
// baseline means the player reconnected and the server-side counter reset;
// the earned total is folded into the offset and the baseline lowered, so
// the reconnect tick reads a zero delta and the total never decreases.
func (t *ScoreTable) Observe(snapshot []crcon.ScoreboardPlayer) {
	for _, p := range snapshot {
		e := t.entry(p.PlayerID, p.Name)
		e.name = p.Name

		if p.Kills < e.baselineKills {
			e.offsetKills = e.kills
			e.baselineKills = p.Kills
		}
		e.kills = clampNonNegative(e.offsetKills + p.Kills - e.baselineKills)

		if p.Support != nil {
			if !e.supportSeen {
				// First support reading mid-match: treat it as the baseline
				// rather than crediting the whole raw value.
				e.baselineSupport = *p.Support
				e.supportSeen = true
			}
			if *p.Support < e.baselineSupport {
				e.offsetSupport = e.support
				e.baselineSupport = *p.Support
			}
			e.support = clampNonNegative(e.offsetSupport + *p.Support - e.baselineSupport)
		}
	}
}

// CarryForward folds every accumulated total into its offset and re-baselines
// against the first snapshot after an outage. Progress earned before the
// outage is preserved; counting resumes from the fresh raw values.
func (t *ScoreTable) CarryForward(snapshot []crcon.ScoreboardPlayer) {
	for _, e := range t.players {
		e.offsetKills = e.kills
		e.offsetSupport = e.support
	}
	for _, p := range snapshot {
		e := t.entry(p.PlayerID, p.Name)
		e.baselineKills = p.Kills
		if p.Support != nil {
			e.baselineSupport = *p.Support
			e.supportSeen = true
		}
	}
}

// Scores returns all accumulators ordered by first observation.
func (t *ScoreTable) Scores() []domain.PlayerScore {
	scores := make([]domain.PlayerScore, 0, len(t.players))
	for id, e := range t.players {
		scores = append(scores, domain.PlayerScore{
			PlayerID: id,
			Name:     e.name,
			Kills:    e.kills,
			Support:  e.support,
			Order:    e.order,
		})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Order < scores[j].Order })
	return scores
}

// SupportAvailable reports whether any player has a positive support count.
// Some API tokens lack the permission for support data entirely.
func (t *ScoreTable) SupportAvailable() bool {
	for _, e := range t.players {
		if e.supportSeen && e.support > 0 {
			return true
		}
	}
	return false
}

// Snapshot exports the table for durable storage.
func (t *ScoreTable) Snapshot() []domain.PlayerSnapshot {
	players := make([]domain.PlayerSnapshot, 0, len(t.players))
	for id, e := range t.players {
		players = append(players, domain.PlayerSnapshot{
			PlayerID:        id,
			Name:            e.name,
			Order:           e.order,
			Kills:           e.kills,
			Support:         e.support,
			BaselineKills:   e.baselineKills,
			BaselineSupport: e.baselineSupport,
			OffsetKills:     e.offsetKills,
			OffsetSupport:   e.offsetSupport,
			SupportSeen:     e.supportSeen,
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Order < players[j].Order })
	return players
}

// Restore rebuilds the table from a stored snapshot.
func (t *ScoreTable) Restore(players []domain.PlayerSnapshot) {
	t.players = make(map[string]*playerEntry, len(players))
	t.nextOrder = 0
	for _, p := range players {
		t.players[p.PlayerID] = &playerEntry{
			name:            p.Name,
			order:           p.Order,
			kills:           p.Kills,
			support:         p.Support,
			baselineKills:   p.BaselineKills,
			baselineSupport: p.BaselineSupport,
			offsetKills:     p.OffsetKills,
			offsetSupport:   p.OffsetSupport,
			supportSeen:     p.SupportSeen,
		}
		if p.Order >= t.nextOrder {
			t.nextOrder = p.Order + 1
		}
	}
}

func (t *ScoreTable) entry(playerID, name string) *playerEntry {
	e, ok := t.players[playerID]
	if !ok {
		e = &playerEntry{name: name, order: t.nextOrder}
		t.nextOrder++
		t.players[playerID] = e
	}
	return e
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
