package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kilian558/top-killier-vip/internal/domain"
)

type fakeMessenger struct {
	messages map[string]string
	fail     bool
}

func (f *fakeMessenger) Name() string { return "s1" }

func (f *fakeMessenger) MessagePlayer(ctx context.Context, playerID, message string) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	if f.messages == nil {
		f.messages = make(map[string]string)
	}
	f.messages[playerID] = message
	return nil
}

func TestPlayerMessage_Wording(t *testing.T) {
	exp := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		entry domain.AwardEntry
		want  []string
	}{
		{
			name:  "killer granted",
			entry: domain.AwardEntry{Rank: 1, Kind: domain.AwardKiller, Metric: 12, Granted: true, Expiration: &exp},
			want:  []string{"CONGRATULATIONS", "Top Killer #1", "12 kills", "2026-09-02 12:00 UTC"},
		},
		{
			name:  "killer already vip",
			entry: domain.AwardEntry{Rank: 2, Kind: domain.AwardKiller, Metric: 9, Reason: domain.ReasonAlreadyVIP},
			want:  []string{"MATCH RESULT", "Top Killer #2", "you already have VIP"},
		},
		{
			name:  "killer excluded",
			entry: domain.AwardEntry{Rank: 3, Kind: domain.AwardKiller, Metric: 5, Reason: domain.ReasonExcluded},
			want:  []string{"MATCH RESULT", "No VIP was granted."},
		},
		{
			name:  "support granted",
			entry: domain.AwardEntry{Rank: 1, Kind: domain.AwardSupport, Metric: 300, Granted: true, Expiration: &exp},
			want:  []string{"CONGRATULATIONS", "Top Support #1", "300 support points"},
		},
		{
			name:  "support already rewarded as killer",
			entry: domain.AwardEntry{Rank: 1, Kind: domain.AwardSupport, Metric: 300, Reason: domain.ReasonAlreadyAwarded},
			want:  []string{"already received a VIP as Top Killer"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := playerMessage(tc.entry)
			for _, want := range tc.want {
				if !strings.Contains(msg, want) {
					t.Errorf("message %q missing %q", msg, want)
				}
			}
		})
	}
}

func TestNotifyPlayers_FailuresSwallowed(t *testing.T) {
	n := NewNotifier(nil)
	m := &fakeMessenger{fail: true}

	// Must not panic or abort on messaging errors.
	n.NotifyPlayers(context.Background(), m, domain.AwardResult{
		Entries: []domain.AwardEntry{
			{Rank: 1, PlayerID: "a", Name: "A", Kind: domain.AwardKiller, Metric: 10, Granted: true},
		},
	})

	m.fail = false
	n.NotifyPlayers(context.Background(), m, domain.AwardResult{
		Entries: []domain.AwardEntry{
			{Rank: 1, PlayerID: "a", Name: "A", Kind: domain.AwardKiller, Metric: 10, Granted: true},
			{Rank: 2, PlayerID: "b", Name: "B", Kind: domain.AwardKiller, Metric: 7, Reason: domain.ReasonExcluded},
		},
	})
	if len(m.messages) != 2 {
		t.Errorf("messages = %v, want both ranked players notified", m.messages)
	}
}

func TestLiveEmbed_TimerPhases(t *testing.T) {
	timer := func(v float64) *float64 { return &v }
	cases := []struct {
		name      string
		remaining *float64
		wantColor int
	}{
		{"plenty of time", timer(1200), colorGreen},
		{"scoreboard phase", timer(85), colorYellow},
		{"critical", timer(40), colorRed},
		{"no reading", nil, colorGreen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			embed := liveEmbed(domain.ServerStatus{
				Name:           "Server 1",
				MapName:        "foy_warfare",
				TimerRemaining: tc.remaining,
			})
			if embed.Color != tc.wantColor {
				t.Errorf("color = %#06x, want %#06x", embed.Color, tc.wantColor)
			}
		})
	}
}

func TestLiveEmbed_StandingsFields(t *testing.T) {
	embed := liveEmbed(domain.ServerStatus{
		Name:    "Server 1",
		MapName: "foy_warfare",
		Standings: []domain.PlayerScore{
			{PlayerID: "a", Name: "Alpha", Kills: 12, Support: 0},
			{PlayerID: "b", Name: "Bravo", Kills: 3, Support: 250},
		},
	})
	if len(embed.Fields) != 2 {
		t.Fatalf("fields = %+v, want killer and support sections", embed.Fields)
	}
	if !strings.Contains(embed.Fields[0].Value, "Alpha") {
		t.Errorf("killer field = %q", embed.Fields[0].Value)
	}
	if !strings.Contains(embed.Fields[1].Value, "Bravo") {
		t.Errorf("support field = %q", embed.Fields[1].Value)
	}
}

func TestFinalEmbed_Sections(t *testing.T) {
	rec := domain.MatchRecord{ServerName: "Server 1", MapName: "foy_warfare", AlliedScore: 3, AxisScore: 2}
	result := domain.AwardResult{
		CompletedAt:      time.Now().UTC(),
		SupportAvailable: false,
		Entries: []domain.AwardEntry{
			{Rank: 1, Name: "Alpha", Kind: domain.AwardKiller, Metric: 12, Hours: 24, Granted: true},
			{Rank: 2, Name: "Bravo", Kind: domain.AwardKiller, Metric: 7, Reason: domain.ReasonAlreadyVIP},
		},
		Standings: []domain.PlayerScore{{Name: "Alpha", Kills: 12}},
	}

	embed := finalEmbed(rec, result)
	var fieldNames []string
	for _, f := range embed.Fields {
		fieldNames = append(fieldNames, f.Name)
	}
	joined := strings.Join(fieldNames, "|")
	if !strings.Contains(joined, "VIP rewards") || !strings.Contains(joined, "Top 10 overall") {
		t.Errorf("fields = %v", fieldNames)
	}
	if !strings.Contains(joined, "Support points unavailable") {
		t.Errorf("missing support warning in %v", fieldNames)
	}
	rewards := embed.Fields[0].Value
	if !strings.Contains(rewards, "✅") || !strings.Contains(rewards, "already VIP") {
		t.Errorf("rewards field = %q", rewards)
	}
}
