package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/kilian558/top-killier-vip/internal/domain"
)

// Messenger delivers an in-game private message on one server.
type Messenger interface {
	Name() string
	MessagePlayer(ctx context.Context, playerID, message string) error
}

const (
	colorGreen  = 0x00ff00
	colorYellow = 0xffff00
	colorRed    = 0xff0000
	colorGold   = 0xffd700
)

// Timer color thresholds for the live embed. These mirror the scoreboard
// phase the players see, not the end-detection policy.
const (
	timerWarnSeconds     = 90
	timerCriticalSeconds = 80
)

// Notifier delivers operator messages to Discord and reward messages to
// players in-game. Every delivery failure is logged and swallowed; match
// tracking never depends on a notification landing.
type Notifier struct {
	webhook *Webhook
}

// NewNotifier creates a notifier. A nil webhook disables Discord delivery
// while keeping player messaging functional.
func NewNotifier(webhook *Webhook) *Notifier {
	return &Notifier{webhook: webhook}
}

func (n *Notifier) post(ctx context.Context, content string, embeds []Embed) string {
	if n.webhook == nil {
		return ""
	}
	id, err := n.webhook.Execute(ctx, content, embeds)
	if err != nil {
		log.Printf("Discord webhook error: %v", err)
		return ""
	}
	return id
}

// Startup announces which servers are being monitored.
func (n *Notifier) Startup(ctx context.Context, serverNames []string) {
	n.post(ctx, fmt.Sprintf("✅ Top Killer VIP started, monitoring: %s", strings.Join(serverNames, ", ")), nil)
}

// Shutdown announces a clean stop.
func (n *Notifier) Shutdown(ctx context.Context) {
	n.post(ctx, "🛑 Top Killer VIP stopped", nil)
}

// MatchStarted announces a new match identity.
func (n *Notifier) MatchStarted(ctx context.Context, serverName, mapName string, skirmish bool) {
	msg := fmt.Sprintf("🎬 **New match on %s**: %s", serverName, mapName)
	if skirmish {
		msg += " (skirmish mode, no VIP rewards)"
	}
	n.post(ctx, msg, nil)
}

// UpdateLiveStandings posts or edits the live standings embed and returns
// the message ID to reuse on the next refresh. An edit failure falls back to
// posting a fresh message, so a deleted message heals itself.
func (n *Notifier) UpdateLiveStandings(ctx context.Context, messageID string, status domain.ServerStatus) string {
	if n.webhook == nil {
		return ""
	}
	embed := liveEmbed(status)
	if messageID != "" {
		err := n.webhook.EditMessage(ctx, messageID, "", []Embed{embed})
		if err == nil {
			return messageID
		}
		log.Printf("[%s] Live message edit failed, posting new: %v", status.Name, err)
	}
	return n.post(ctx, "", []Embed{embed})
}

// AwardCompleted publishes the final match summary. When a live standings
// message exists it is edited into the final embed, otherwise a new message
// is posted.
func (n *Notifier) AwardCompleted(ctx context.Context, rec domain.MatchRecord, result domain.AwardResult, liveMessageID string) {
	if n.webhook == nil {
		return
	}
	embed := finalEmbed(rec, result)
	if liveMessageID != "" {
		err := n.webhook.EditMessage(ctx, liveMessageID, "", []Embed{embed})
		if err == nil {
			return
		}
		log.Printf("[%s] Final embed edit failed, posting new: %v", rec.ServerName, err)
	}
	n.post(ctx, "", []Embed{embed})
}

func liveEmbed(status domain.ServerStatus) Embed {
	color := colorGreen
	timerText := "**⏱️ Timer:** loading...\n"
	if status.TimerRemaining != nil {
		remaining := *status.TimerRemaining
		emoji := "🟢"
		if remaining <= timerCriticalSeconds {
			emoji = "🔴"
			color = colorRed
		} else if remaining <= timerWarnSeconds {
			emoji = "🟡"
			color = colorYellow
		}
		timerText = fmt.Sprintf("**%s Timer:** %02d:%02d\n", emoji, int(remaining)/60, int(remaining)%60)
	}

	desc := fmt.Sprintf("**Map:** %s\n%s**📊 Score:** %d:%d\n",
		status.MapName, timerText, status.AlliedScore, status.AxisScore)
	if status.MatchStart != nil {
		desc += fmt.Sprintf("**Match start:** <t:%d:R>", status.MatchStart.Unix())
	}

	embed := Embed{
		Title:       fmt.Sprintf("🎯 Live Match Stats - %s", status.Name),
		Description: desc,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer:      &EmbedFooter{Text: "🔄 Auto-update every 30 seconds"},
	}

	killers := topByKills(status.Standings, 10)
	if text := standingsText(killers, func(p domain.PlayerScore) int { return p.Kills }, "Kills"); text != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Top 10 Killer", Value: text})
	} else {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Top 10 Killer", Value: "No kills recorded yet"})
	}

	supporters := topBySupport(status.Standings, 10)
	if text := standingsText(supporters, func(p domain.PlayerScore) int { return p.Support }, "Support"); text != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Top 10 Support", Value: text})
	} else {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Top 10 Support", Value: "No support data"})
	}

	return embed
}

func finalEmbed(rec domain.MatchRecord, result domain.AwardResult) Embed {
	embed := Embed{
		Title:       fmt.Sprintf("🏆 Match over - %s", rec.ServerName),
		Description: fmt.Sprintf("**Map:** %s\n**Score:** %d:%d", rec.MapName, rec.AlliedScore, rec.AxisScore),
		Color:       colorGold,
		Timestamp:   result.CompletedAt.UTC().Format(time.RFC3339),
		Footer:      &EmbedFooter{Text: "Match completed"},
	}

	if len(result.Entries) > 0 {
		var b strings.Builder
		for _, e := range result.Entries {
			status := "❌"
			if e.Granted {
				status = "✅"
			}
			metric := fmt.Sprintf("%d Kills", e.Metric)
			if e.Kind == domain.AwardSupport {
				metric = fmt.Sprintf("Support: %d", e.Metric)
			}
			outcome := fmt.Sprintf("+%dh VIP", e.Hours)
			if !e.Granted {
				outcome = "no VIP (" + reasonText(e.Reason) + ")"
			}
			fmt.Fprintf(&b, "%s %s **%s** - %s → %s\n", status, rankEmoji(e.Rank), trimName(e.Name), metric, outcome)
		}
		embed.Fields = append(embed.Fields, EmbedField{Name: "🎁 VIP rewards", Value: b.String()})
	} else {
		embed.Fields = append(embed.Fields, EmbedField{Name: "🎁 VIP rewards", Value: "No eligible players"})
	}

	if !result.SupportAvailable {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  "⚠️ Support points unavailable",
			Value: "The API token may lack the scoreboard permission.",
		})
	}

	if len(result.Standings) > 0 {
		var b strings.Builder
		for i, p := range result.Standings {
			support := ""
			if p.Support > 0 {
				support = fmt.Sprintf(", Support: %d", p.Support)
			}
			fmt.Fprintf(&b, "%d. **%s** - %d Kills%s\n", i+1, trimName(p.Name), p.Kills, support)
		}
		embed.Fields = append(embed.Fields, EmbedField{Name: "📊 Top 10 overall", Value: b.String()})
	}

	return embed
}

func reasonText(reason string) string {
	switch reason {
	case domain.ReasonAlreadyVIP:
		return "already VIP"
	case domain.ReasonExcluded:
		return "excluded"
	case domain.ReasonAlreadyAwarded:
		return "already rewarded"
	case domain.ReasonGrantFailed:
		return "grant failed"
	default:
		return reason
	}
}

func rankEmoji(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("#%d", rank)
	}
}

func trimName(name string) string {
	if len(name) > 25 {
		return name[:25]
	}
	return name
}

func standingsText(players []domain.PlayerScore, metric func(domain.PlayerScore) int, unit string) string {
	var b strings.Builder
	for i, p := range players {
		emoji := "⭐"
		switch i {
		case 0:
			emoji = "🥇"
		case 1:
			emoji = "🥈"
		case 2:
			emoji = "🥉"
		}
		fmt.Fprintf(&b, "%s **%s** - %d %s\n", emoji, trimName(p.Name), metric(p), unit)
	}
	return b.String()
}

func topByKills(players []domain.PlayerScore, limit int) []domain.PlayerScore {
	return topBy(players, limit, func(p domain.PlayerScore) int { return p.Kills })
}

func topBySupport(players []domain.PlayerScore, limit int) []domain.PlayerScore {
	return topBy(players, limit, func(p domain.PlayerScore) int { return p.Support })
}

func topBy(players []domain.PlayerScore, limit int, metric func(domain.PlayerScore) int) []domain.PlayerScore {
	sorted := make([]domain.PlayerScore, 0, len(players))
	for _, p := range players {
		if metric(p) > 0 {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return metric(sorted[i]) > metric(sorted[j]) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// NotifyPlayers sends each ranked player the match result in-game on the
// match's home server, with the original reward wording.
func (n *Notifier) NotifyPlayers(ctx context.Context, m Messenger, result domain.AwardResult) {
	for _, e := range result.Entries {
		msg := playerMessage(e)
		if msg == "" {
			continue
		}
		if err := m.MessagePlayer(ctx, e.PlayerID, msg); err != nil {
			log.Printf("[%s] Failed to message %s: %v", m.Name(), e.Name, err)
		}
	}
}

func playerMessage(e domain.AwardEntry) string {
	switch e.Kind {
	case domain.AwardKiller:
		if e.Granted {
			return fmt.Sprintf(
				"🏆 CONGRATULATIONS! 🏆\nYou placed Top Killer #%d with %d kills and had no VIP. Your VIP has been extended until %s.",
				e.Rank, e.Metric, formatExpiration(e.Expiration))
		}
		return fmt.Sprintf(
			"🏆 MATCH RESULT 🏆\nYou placed Top Killer #%d with %d kills. %s",
			e.Rank, e.Metric, denyText(e.Reason))
	case domain.AwardSupport:
		if e.Granted {
			return fmt.Sprintf(
				"🛠️ CONGRATULATIONS! 🛠️\nYou placed Top Support #%d with %d support points and had no VIP. Your VIP has been extended until %s.",
				e.Rank, e.Metric, formatExpiration(e.Expiration))
		}
		return fmt.Sprintf(
			"🛠️ MATCH RESULT 🛠️\nYou placed Top Support #%d with %d support points. %s",
			e.Rank, e.Metric, denyText(e.Reason))
	}
	return ""
}

func denyText(reason string) string {
	switch reason {
	case domain.ReasonAlreadyVIP:
		return "No VIP was granted because you already have VIP."
	case domain.ReasonAlreadyAwarded:
		return "No VIP was granted because you already received a VIP as Top Killer."
	default:
		return "No VIP was granted."
	}
}

func formatExpiration(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
