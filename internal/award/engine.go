package award

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kilian558/top-killier-vip/internal/crcon"
	"github.com/kilian558/top-killier-vip/internal/domain"
)

// Target is one server a privilege grant must propagate to. *crcon.Client
// satisfies it.
type Target interface {
	Name() string
	VIPs(ctx context.Context) (map[string]crcon.VIP, error)
	AddVIP(ctx context.Context, playerID string, expiration time.Time, description string) error
	RemoveVIP(ctx context.Context, playerID string) error
}

// Policy configures one award pass.
type Policy struct {
	KillerCount  int
	KillerHours  int
	SupportCount int
	SupportHours int

	// Excluded players appear in standings but never receive a grant.
	ExcludedIDs   map[string]struct{}
	ExcludedNames map[string]struct{} // lowercased
}

// NewPolicy builds a Policy from raw exclusion lists.
func NewPolicy(killerCount, killerHours, supportCount, supportHours int, excludedIDs, excludedNames []string) Policy {
	p := Policy{
		KillerCount:   killerCount,
		KillerHours:   killerHours,
		SupportCount:  supportCount,
		SupportHours:  supportHours,
		ExcludedIDs:   make(map[string]struct{}, len(excludedIDs)),
		ExcludedNames: make(map[string]struct{}, len(excludedNames)),
	}
	for _, id := range excludedIDs {
		p.ExcludedIDs[id] = struct{}{}
	}
	for _, name := range excludedNames {
		p.ExcludedNames[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return p
}

func (p Policy) excluded(playerID, name string) bool {
	if _, ok := p.ExcludedIDs[playerID]; ok {
		return true
	}
	_, ok := p.ExcludedNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Engine computes and dispatches award passes. One engine serves all
// monitored servers; the targets are every server the privilege must hold on.
type Engine struct {
	policy  Policy
	targets []Target
	now     func() time.Time
}

// NewEngine creates an award engine over the given grant targets.
func NewEngine(policy Policy, targets []Target) *Engine {
	return &Engine{policy: policy, targets: targets, now: time.Now}
}

// Run executes one award pass for a finalized match. home is the index of
// the target the match ran on; its VIP list decides the "already held"
// filter. Run never returns an error: every grant outcome, success or
// failure, is recorded in the result.
func (e *Engine) Run(ctx context.Context, rec domain.MatchRecord, home int) domain.AwardResult {
	result := domain.AwardResult{
		PassID:           uuid.NewString(),
		ServerID:         rec.ServerID,
		ServerName:       rec.ServerName,
		MapName:          rec.MapName,
		SupportAvailable: rec.SupportAvailable,
	}

	// One VIP list per target. A failed fetch degrades to an empty list:
	// lookups miss, grants are still attempted and idempotent.
	vips := make([]map[string]crcon.VIP, len(e.targets))
	for i, target := range e.targets {
		list, err := target.VIPs(ctx)
		if err != nil {
			log.Printf("[%s] Warning: fetching VIP list failed: %v", target.Name(), err)
			list = map[string]crcon.VIP{}
		}
		vips[i] = list
	}

	killers := rank(rec.Players, func(p domain.PlayerScore) int { return p.Kills })
	supporters := rank(rec.Players, func(p domain.PlayerScore) int { return p.Support })

	awarded := make(map[string]struct{})

	for rankNum, p := range top(killers, e.policy.KillerCount) {
		entry := e.award(ctx, p, rankNum+1, domain.AwardKiller, p.Kills, e.policy.KillerHours, vips, home, awarded)
		result.Entries = append(result.Entries, entry)
	}

	if rec.SupportAvailable {
		for rankNum, p := range top(supporters, e.policy.SupportCount) {
			entry := e.award(ctx, p, rankNum+1, domain.AwardSupport, p.Support, e.policy.SupportHours, vips, home, awarded)
			result.Entries = append(result.Entries, entry)
		}
	}

	result.Standings = top(killers, 10)
	result.CompletedAt = e.now().UTC()
	return result
}

// award evaluates one ranked player: eligibility filters first, then the
// cross-target grant. Filter order matters: exclusion, current holder,
// mutual exclusivity.
func (e *Engine) award(ctx context.Context, p domain.PlayerScore, rankNum int, kind string, metric, hours int, vips []map[string]crcon.VIP, home int, awarded map[string]struct{}) domain.AwardEntry {
	entry := domain.AwardEntry{
		Rank:     rankNum,
		PlayerID: p.PlayerID,
		Name:     p.Name,
		Kind:     kind,
		Metric:   metric,
		Hours:    hours,
	}

	if e.policy.excluded(p.PlayerID, p.Name) {
		entry.Reason = domain.ReasonExcluded
		return entry
	}
	if current, held := vips[home][p.PlayerID]; held && e.active(current) {
		entry.Reason = domain.ReasonAlreadyVIP
		return entry
	}
	if _, ok := awarded[p.PlayerID]; ok {
		entry.Reason = domain.ReasonAlreadyAwarded
		return entry
	}

	// The new expiration stacks onto whatever the home target has on file
	// (an expired leftover record, usually nothing) so it is consistent
	// across all targets.
	expiration := StackExpiration(vips[home][p.PlayerID].Expiration, hours, e.now())
	description := fmt.Sprintf("Top %s reward (+%dh)", kind, hours)

	// The grant is considered successful only if every target either already
	// grants the player an active privilege or the grant call succeeds.
	// Partial successes are kept; a retried pass would complete the rest.
	success := true
	for i, target := range e.targets {
		current, held := vips[i][p.PlayerID]
		if held && e.active(current) {
			if IsLifetime(current.Expiration) {
				log.Printf("[%s] %s (%s) holds lifetime VIP, leaving untouched", target.Name(), p.Name, p.PlayerID)
			}
			continue
		}
		if held {
			// Expired leftover record: add_vip replaces rather than stacks,
			// so clear it first.
			if err := target.RemoveVIP(ctx, p.PlayerID); err != nil {
				log.Printf("[%s] Warning: removing stale VIP for %s (%s) failed: %v", target.Name(), p.Name, p.PlayerID, err)
			}
		}
		if err := target.AddVIP(ctx, p.PlayerID, expiration, description); err != nil {
			log.Printf("[%s] Warning: VIP grant for %s (%s) failed: %v", target.Name(), p.Name, p.PlayerID, err)
			success = false
		}
	}

	entry.Granted = success
	if success {
		entry.Expiration = &expiration
		awarded[p.PlayerID] = struct{}{}
	} else {
		entry.Reason = domain.ReasonGrantFailed
	}
	return entry
}

// active reports whether a VIP record is currently in force. Unparseable
// expirations are treated as active so a malformed record is never clobbered.
func (e *Engine) active(v crcon.VIP) bool {
	if IsLifetime(v.Expiration) {
		return true
	}
	if t, ok := ParseExpiration(v.Expiration); ok {
		return t.After(e.now())
	}
	return true
}

// rank returns the players with a strictly positive metric, ordered by the
// metric descending with first-observed order as the tie-break.
func rank(players []domain.PlayerScore, metric func(domain.PlayerScore) int) []domain.PlayerScore {
	ranked := make([]domain.PlayerScore, 0, len(players))
	for _, p := range players {
		if metric(p) > 0 {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		mi, mj := metric(ranked[i]), metric(ranked[j])
		if mi != mj {
			return mi > mj
		}
		return ranked[i].Order < ranked[j].Order
	})
	return ranked
}

func top(players []domain.PlayerScore, n int) []domain.PlayerScore {
	if len(players) > n {
		players = players[:n]
	}
	return players
}
