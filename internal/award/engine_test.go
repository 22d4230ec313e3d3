package award

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kilian558/top-killier-vip/internal/crcon"
	"github.com/kilian558/top-killier-vip/internal/domain"
)

type fakeTarget struct {
	name     string
	vips     map[string]crcon.VIP
	vipsErr  error
	grantErr map[string]error // per-player forced failures

	grants  []string // player IDs in grant order
	removed []string
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) VIPs(ctx context.Context) (map[string]crcon.VIP, error) {
	if f.vipsErr != nil {
		return nil, f.vipsErr
	}
	if f.vips == nil {
		return map[string]crcon.VIP{}, nil
	}
	return f.vips, nil
}

func (f *fakeTarget) AddVIP(ctx context.Context, playerID string, expiration time.Time, description string) error {
	if err := f.grantErr[playerID]; err != nil {
		return err
	}
	f.grants = append(f.grants, playerID)
	return nil
}

func (f *fakeTarget) RemoveVIP(ctx context.Context, playerID string) error {
	f.removed = append(f.removed, playerID)
	return nil
}

func defaultPolicy() Policy {
	return NewPolicy(3, 24, 2, 24, nil, nil)
}

func player(id, name string, order, kills, support int) domain.PlayerScore {
	return domain.PlayerScore{PlayerID: id, Name: name, Order: order, Kills: kills, Support: support}
}

func record(players ...domain.PlayerScore) domain.MatchRecord {
	return domain.MatchRecord{
		ServerID:   1,
		ServerName: "Server 1",
		MapName:    "carentan_warfare",
		Players:    players,
	}
}

func fixedEngine(policy Policy, targets ...Target) *Engine {
	e := NewEngine(policy, targets)
	e.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestRun_TopKillersRankedAndGranted(t *testing.T) {
	target := &fakeTarget{name: "s1"}
	e := fixedEngine(defaultPolicy(), target)

	// B and C tie on 7 kills; C was observed first and must outrank B.
	rec := record(
		player("a", "A", 0, 10, 0),
		player("c", "C", 1, 7, 0),
		player("b", "B", 2, 7, 0),
		player("d", "D", 3, 2, 0),
	)

	res := e.Run(context.Background(), rec, 0)

	if len(res.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(res.Entries))
	}
	wantOrder := []string{"a", "c", "b"}
	for i, id := range wantOrder {
		entry := res.Entries[i]
		if entry.PlayerID != id {
			t.Errorf("rank %d = %s, want %s", i+1, entry.PlayerID, id)
		}
		if entry.Rank != i+1 {
			t.Errorf("entry %d rank = %d, want %d", i, entry.Rank, i+1)
		}
		if !entry.Granted {
			t.Errorf("rank %d not granted: %+v", i+1, entry)
		}
		if entry.Expiration == nil {
			t.Fatalf("rank %d missing expiration", i+1)
		}
		want := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
		if !entry.Expiration.Equal(want) {
			t.Errorf("rank %d expiration = %v, want %v", i+1, entry.Expiration, want)
		}
	}
	if len(target.grants) != 3 {
		t.Errorf("grant calls = %v, want 3", target.grants)
	}
}

func TestRun_ZeroMetricPlayersIneligible(t *testing.T) {
	target := &fakeTarget{name: "s1"}
	e := fixedEngine(defaultPolicy(), target)

	res := e.Run(context.Background(), record(
		player("a", "A", 0, 1, 0),
		player("b", "B", 1, 0, 0),
	), 0)

	if len(res.Entries) != 1 {
		t.Fatalf("entries = %+v, want only the player with kills", res.Entries)
	}
	if res.Entries[0].PlayerID != "a" {
		t.Errorf("entry = %+v, want player a", res.Entries[0])
	}
}

func TestRun_ExclusionListedButNeverGranted(t *testing.T) {
	policy := NewPolicy(3, 24, 2, 24, []string{"b"}, []string{"Lexman"})
	target := &fakeTarget{name: "s1"}
	e := fixedEngine(policy, target)

	res := e.Run(context.Background(), record(
		player("a", "A", 0, 10, 0),
		player("b", "B", 1, 8, 0),
		player("c", "lexman", 2, 6, 0),
	), 0)

	if len(res.Entries) != 3 {
		t.Fatalf("got %d entries, want 3 (excluded players still appear)", len(res.Entries))
	}
	for _, entry := range res.Entries[1:] {
		if entry.Granted {
			t.Errorf("excluded player granted: %+v", entry)
		}
		if entry.Reason != domain.ReasonExcluded {
			t.Errorf("reason = %q, want %q", entry.Reason, domain.ReasonExcluded)
		}
	}
	if len(target.grants) != 1 || target.grants[0] != "a" {
		t.Errorf("grants = %v, want only a", target.grants)
	}
}

func TestRun_CurrentHolderNotifiedNotGranted(t *testing.T) {
	target := &fakeTarget{name: "s1", vips: map[string]crcon.VIP{
		"a": {PlayerID: "a", Expiration: "2026-12-01T00:00:00Z"},
	}}
	e := fixedEngine(defaultPolicy(), target)

	res := e.Run(context.Background(), record(player("a", "A", 0, 10, 0)), 0)

	entry := res.Entries[0]
	if entry.Granted {
		t.Fatalf("holder was granted: %+v", entry)
	}
	if entry.Reason != domain.ReasonAlreadyVIP {
		t.Errorf("reason = %q, want %q", entry.Reason, domain.ReasonAlreadyVIP)
	}
	if len(target.grants) != 0 {
		t.Errorf("grants = %v, want none", target.grants)
	}
}

func TestRun_ExpiredHolderRegranted(t *testing.T) {
	target := &fakeTarget{name: "s1", vips: map[string]crcon.VIP{
		"a": {PlayerID: "a", Expiration: "2026-01-01T00:00:00Z"},
	}}
	e := fixedEngine(defaultPolicy(), target)

	res := e.Run(context.Background(), record(player("a", "A", 0, 10, 0)), 0)

	entry := res.Entries[0]
	if !entry.Granted {
		t.Fatalf("expired holder not granted: %+v", entry)
	}
	if len(target.removed) != 1 || target.removed[0] != "a" {
		t.Errorf("removed = %v, want stale record cleared first", target.removed)
	}
	want := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
	if entry.Expiration == nil || !entry.Expiration.Equal(want) {
		t.Errorf("expiration = %v, want %v (stacked onto now, not the stale record)", entry.Expiration, want)
	}
}

func TestRun_MutualExclusivity(t *testing.T) {
	target := &fakeTarget{name: "s1"}
	e := fixedEngine(defaultPolicy(), target)

	// A tops both categories but may only be granted once.
	rec := record(
		player("a", "A", 0, 10, 500),
		player("b", "B", 1, 5, 300),
		player("c", "C", 2, 3, 100),
	)
	rec.SupportAvailable = true

	res := e.Run(context.Background(), rec, 0)

	grantsForA := 0
	var supportEntryA *domain.AwardEntry
	for i, entry := range res.Entries {
		if entry.PlayerID == "a" {
			if entry.Granted {
				grantsForA++
			}
			if entry.Kind == domain.AwardSupport {
				supportEntryA = &res.Entries[i]
			}
		}
	}
	if grantsForA != 1 {
		t.Errorf("player a granted %d times, want exactly 1", grantsForA)
	}
	if supportEntryA == nil {
		t.Fatal("player a missing from support standings")
	}
	if supportEntryA.Reason != domain.ReasonAlreadyAwarded {
		t.Errorf("support reason = %q, want %q", supportEntryA.Reason, domain.ReasonAlreadyAwarded)
	}

	// A and B already hold killer grants, so neither support rank converts.
	supportGrants := 0
	for _, entry := range res.Entries {
		if entry.Kind == domain.AwardSupport && entry.Granted {
			supportGrants++
		}
	}
	if supportGrants != 0 {
		t.Errorf("support grants = %d, want 0 (both ranks already rewarded as killers)", supportGrants)
	}
}

func TestRun_SupportSkippedWhenUnavailable(t *testing.T) {
	target := &fakeTarget{name: "s1"}
	e := fixedEngine(defaultPolicy(), target)

	rec := record(player("a", "A", 0, 10, 200))
	rec.SupportAvailable = false

	res := e.Run(context.Background(), rec, 0)
	for _, entry := range res.Entries {
		if entry.Kind == domain.AwardSupport {
			t.Errorf("unexpected support entry: %+v", entry)
		}
	}
}

func TestRun_CrossTargetAllMustSucceed(t *testing.T) {
	s1 := &fakeTarget{name: "s1"}
	s2 := &fakeTarget{name: "s2", grantErr: map[string]error{"a": errors.New("boom")}}
	s3 := &fakeTarget{name: "s3", vips: map[string]crcon.VIP{
		"a": {PlayerID: "a", Expiration: "2026-12-01T00:00:00Z"},
	}}
	e := fixedEngine(defaultPolicy(), s1, s2, s3)

	res := e.Run(context.Background(), record(player("a", "A", 0, 10, 0)), 0)

	entry := res.Entries[0]
	if entry.Granted {
		t.Fatalf("grant reported success despite target failure: %+v", entry)
	}
	if entry.Reason != domain.ReasonGrantFailed {
		t.Errorf("reason = %q, want %q", entry.Reason, domain.ReasonGrantFailed)
	}
	// The successful target keeps its grant; the holding target is not called.
	if len(s1.grants) != 1 {
		t.Errorf("s1 grants = %v, want the partial grant kept", s1.grants)
	}
	if len(s3.grants) != 0 {
		t.Errorf("s3 grants = %v, want none (already holds)", s3.grants)
	}
}

func TestRun_GrantFailureNeverAbortsPass(t *testing.T) {
	target := &fakeTarget{name: "s1", grantErr: map[string]error{"a": errors.New("rejected")}}
	e := fixedEngine(defaultPolicy(), target)

	res := e.Run(context.Background(), record(
		player("a", "A", 0, 10, 0),
		player("b", "B", 1, 5, 0),
	), 0)

	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(res.Entries))
	}
	if res.Entries[0].Granted {
		t.Error("failed grant reported as success")
	}
	if !res.Entries[1].Granted {
		t.Error("later entry not processed after earlier failure")
	}
}

func TestRun_LifetimeHolderUntouchedOnSecondaryTarget(t *testing.T) {
	s1 := &fakeTarget{name: "s1"}
	s2 := &fakeTarget{name: "s2", vips: map[string]crcon.VIP{
		"a": {PlayerID: "a", Expiration: "permanent"},
	}}
	e := fixedEngine(defaultPolicy(), s1, s2)

	res := e.Run(context.Background(), record(player("a", "A", 0, 10, 0)), 0)

	entry := res.Entries[0]
	if !entry.Granted {
		t.Fatalf("grant failed: %+v", entry)
	}
	if len(s2.grants) != 0 || len(s2.removed) != 0 {
		t.Errorf("lifetime holder modified on s2: grants=%v removed=%v", s2.grants, s2.removed)
	}
	if len(s1.grants) != 1 {
		t.Errorf("s1 grants = %v, want 1", s1.grants)
	}
}

func TestRun_VIPListFetchFailureDegrades(t *testing.T) {
	target := &fakeTarget{name: "s1", vipsErr: fmt.Errorf("timeout")}
	e := fixedEngine(defaultPolicy(), target)

	res := e.Run(context.Background(), record(player("a", "A", 0, 10, 0)), 0)

	if !res.Entries[0].Granted {
		t.Errorf("grant skipped because VIP list fetch failed: %+v", res.Entries[0])
	}
}

func TestRun_StandingsTopTen(t *testing.T) {
	target := &fakeTarget{name: "s1"}
	e := fixedEngine(defaultPolicy(), target)

	var players []domain.PlayerScore
	for i := 0; i < 14; i++ {
		players = append(players, player(fmt.Sprintf("p%d", i), fmt.Sprintf("P%d", i), i, 20-i, 0))
	}

	res := e.Run(context.Background(), record(players...), 0)
	if len(res.Standings) != 10 {
		t.Fatalf("standings = %d, want 10", len(res.Standings))
	}
	if res.Standings[0].PlayerID != "p0" {
		t.Errorf("top of standings = %s, want p0", res.Standings[0].PlayerID)
	}
}
