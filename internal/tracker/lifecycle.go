package tracker

import (
	"fmt"
	"strings"
)

// Match lifecycle phases. EndPending exists only to make the detection tick
// observable in logs and status output; the transition to Rewarding always
// happens on the same tick.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInMatch
	PhaseEndPending
	PhaseRewarding
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInMatch:
		return "in_match"
	case PhaseEndPending:
		return "end_pending"
	case PhaseRewarding:
		return "rewarding"
	default:
		return "unknown"
	}
}

// EndPolicy is the end-of-round detection policy. The thresholds and strike
// count are heuristics against unspecified upstream timer behavior and are
// config-driven, not protocol guarantees.
type EndPolicy struct {
	WinScore        int     // decisive team score, ends the match immediately
	NearEndSeconds  float64 // debounced low-timer threshold
	FinalEndSeconds float64 // tighter threshold that ends without a second strike
	TimerStrikes    int     // sub-threshold observations required (rebound re-arms)
	SkirmishMarkers []string
}

// Lifecycle decides when one server's current match has ended. The timer can
// be read during a noisy transitional scoreboard phase and briefly rebound
// above the near-end threshold, so a single low reading is never trusted: the
// threshold must be crossed again after a rebound, or the tighter final
// threshold must be reached on a continued decline.
type Lifecycle struct {
	policy  EndPolicy
	phase   Phase
	strikes int
	rebound bool
}

// NewLifecycle creates a lifecycle machine in the Idle phase.
func NewLifecycle(policy EndPolicy) *Lifecycle {
	if policy.TimerStrikes < 1 {
		policy.TimerStrikes = 2
	}
	return &Lifecycle{policy: policy, phase: PhaseIdle}
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase { return l.phase }

// StartMatch arms the machine for a fresh match identity.
func (l *Lifecycle) StartMatch() {
	l.phase = PhaseInMatch
	l.strikes = 0
	l.rebound = false
}

// Resume re-enters InMatch without clearing debounce counters, used after a
// snapshot restore mid-match.
func (l *Lifecycle) Resume() {
	if l.phase == PhaseIdle {
		l.phase = PhaseInMatch
	}
}

// EvaluateEnd consumes one tick's timer and score reading and reports whether
// the match should be considered over. A nil timer means no reading this tick
// and never contributes to detection.
func (l *Lifecycle) EvaluateEnd(timer *float64, alliedScore, axisScore int) (ended bool, reason string) {
	if l.phase != PhaseInMatch {
		return false, ""
	}

	// A decisive score is unambiguous: no confirmation delay.
	if l.policy.WinScore > 0 && (alliedScore >= l.policy.WinScore || axisScore >= l.policy.WinScore) {
		return l.commit(fmt.Sprintf("score reached (%d:%d)", alliedScore, axisScore))
	}

	if timer == nil {
		return false, ""
	}
	remaining := *timer

	if remaining <= l.policy.FinalEndSeconds {
		return l.commit(fmt.Sprintf("timer expired (%.0fs remaining)", remaining))
	}

	if remaining <= l.policy.NearEndSeconds {
		if l.strikes == 0 {
			l.strikes = 1
			return false, ""
		}
		if l.rebound {
			l.strikes++
			l.rebound = false
		}
		if l.strikes >= l.policy.TimerStrikes {
			return l.commit(fmt.Sprintf("timer low twice (%.0fs remaining)", remaining))
		}
		return false, ""
	}

	// Timer rebounded above the threshold: re-arm detection.
	if l.strikes > 0 {
		l.rebound = true
	}
	return false, ""
}

func (l *Lifecycle) commit(reason string) (bool, string) {
	l.phase = PhaseEndPending
	return true, reason
}

// BeginReward moves EndPending to Rewarding on the same tick.
func (l *Lifecycle) BeginReward() {
	l.phase = PhaseRewarding
}

// FinishReward returns the machine to InMatch, ready for the next identity
// change. The caller's reward-issued flag, not the phase, is what prevents a
// second award pass.
func (l *Lifecycle) FinishReward() {
	l.phase = PhaseInMatch
	l.strikes = 0
	l.rebound = false
}

// IsSkirmish reports whether a map name is flagged as a non-standard game
// mode by naming convention. Such matches are tracked for bookkeeping but are
// marked pre-rewarded so no award pass ever runs against them.
func (l *Lifecycle) IsSkirmish(mapName string) bool {
	lower := strings.ToLower(mapName)
	for _, marker := range l.policy.SkirmishMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
