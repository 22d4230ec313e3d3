package tracker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilian558/top-killier-vip/internal/award"
	"github.com/kilian558/top-killier-vip/internal/config"
	"github.com/kilian558/top-killier-vip/internal/crcon"
	"github.com/kilian558/top-killier-vip/internal/domain"
	"github.com/kilian558/top-killier-vip/internal/notify"
	"github.com/kilian558/top-killier-vip/internal/storage"
)

// ServerManager drives the tracking loop for every configured CRCON server.
// Each server runs in its own goroutine, so one slow endpoint never stalls
// the others, while a server's own ticks can never overlap.
type ServerManager struct {
	cfg      *config.Config
	store    *storage.Store
	notifier *notify.Notifier
	engine   *award.Engine
	events   chan domain.Event

	mu      sync.RWMutex
	servers []*serverState
	done    chan struct{}
	wg      sync.WaitGroup
}

// serverState is owned by its server's polling goroutine. Only the published
// status and the live message ID escape; both are guarded by the manager
// mutex because the refresh loop touches them too.
type serverState struct {
	index  int
	target domain.ServerTarget
	client *crcon.Client
	table  *ScoreTable
	life   *Lifecycle

	matchUUID     string
	matchID       string // identity token, the map name a match is keyed by
	mapName       string
	matchStart    *time.Time
	rewarded      bool
	inactiveSince *time.Time
	liveMessageID string
	lastSnapshot  time.Time

	status *domain.ServerStatus
}

// NewServerManager creates a new manager
func NewServerManager(cfg *config.Config, store *storage.Store, notifier *notify.Notifier) *ServerManager {
	return &ServerManager{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		events:   make(chan domain.Event, 100),
		done:     make(chan struct{}),
	}
}

// Events returns the event channel for WebSocket broadcasting
func (m *ServerManager) Events() <-chan domain.Event {
	return m.events
}

// Start registers servers, probes connectivity, restores snapshots and
// begins polling. An unreachable server fails startup: awards must span all
// configured servers, so tracking against a partial set would hand out
// grants that cannot be mirrored.
func (m *ServerManager) Start(ctx context.Context) error {
	endPolicy := EndPolicy{
		WinScore:        m.cfg.Awards.WinScore,
		NearEndSeconds:  m.cfg.Awards.NearEndSeconds,
		FinalEndSeconds: m.cfg.Awards.FinalEndSeconds,
		TimerStrikes:    m.cfg.Awards.TimerStrikes,
		SkirmishMarkers: m.cfg.Awards.SkirmishMarkers,
	}

	for i, srv := range m.cfg.CRCONServers {
		state := &serverState{
			index:  i,
			client: crcon.NewClient(srv.Name, srv.BaseURL, srv.APIToken, 0),
			table:  NewScoreTable(),
			life:   NewLifecycle(endPolicy),
		}
		m.servers = append(m.servers, state)
	}

	// Probe every endpoint up front and pick up the live server names.
	g, gctx := errgroup.WithContext(ctx)
	for _, state := range m.servers {
		state := state
		g.Go(func() error {
			name, err := state.client.Status(gctx)
			if err != nil {
				return fmt.Errorf("server %q unreachable: %w", state.client.Name(), err)
			}
			if name != "" {
				state.client.SetName(name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var names []string
	targets := make([]award.Target, 0, len(m.servers))
	for _, state := range m.servers {
		state.target = domain.ServerTarget{Name: state.client.Name(), BaseURL: state.client.BaseURL()}
		if err := m.store.UpsertServer(ctx, &state.target); err != nil {
			return fmt.Errorf("registering server %q: %w", state.target.Name, err)
		}
		names = append(names, state.target.Name)
		targets = append(targets, state.client)

		if err := m.restoreSnapshot(ctx, state); err != nil {
			log.Printf("[%s] Warning: snapshot restore failed: %v", state.target.Name, err)
		}
	}

	m.engine = award.NewEngine(award.NewPolicy(
		m.cfg.Awards.KillerCount, m.cfg.Awards.KillerHours,
		m.cfg.Awards.SupportCount, m.cfg.Awards.SupportHours,
		m.cfg.Exclusions.PlayerIDs, m.cfg.Exclusions.Names,
	), targets)

	m.notifier.Startup(ctx, names)

	for _, state := range m.servers {
		m.wg.Add(1)
		go m.pollLoop(ctx, state)
	}
	m.wg.Add(1)
	go m.refreshLoop(ctx)

	log.Printf("Tracking %d server(s)", len(m.servers))
	return nil
}

// Stop halts polling and writes a final snapshot for every server.
func (m *ServerManager) Stop() {
	log.Println("ServerManager: stopping...")
	close(m.done)
	m.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, state := range m.servers {
		if state.matchID != "" {
			m.saveSnapshot(ctx, state, true)
		}
	}
	m.notifier.Shutdown(ctx)
	log.Println("ServerManager: shutdown complete")
}

func (m *ServerManager) restoreSnapshot(ctx context.Context, state *serverState) error {
	snap, err := m.store.LoadSnapshot(ctx, state.target.ID)
	if err != nil {
		return err
	}
	if snap == nil || snap.MatchID == "" {
		return nil
	}

	state.matchUUID = snap.MatchUUID
	state.matchID = snap.MatchID
	state.mapName = snap.MapName
	state.matchStart = snap.MatchStart
	state.rewarded = snap.Rewarded
	state.inactiveSince = snap.InactiveSince
	state.liveMessageID = snap.LiveMessageID
	state.table.Restore(snap.Players)
	state.life.Resume()

	log.Printf("[%s] Resumed match %s on %s (%d players, rewarded=%v)",
		state.target.Name, snap.MatchUUID, snap.MapName, len(snap.Players), snap.Rewarded)
	return nil
}

// pollLoop runs one server's tick cycle. Ticks are strictly sequential for a
// server; a tick that overruns the interval simply delays the next one.
func (m *ServerManager) pollLoop(ctx context.Context, state *serverState) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Server.PollInterval)
	defer ticker.Stop()

	m.tick(ctx, state)

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, state)
		}
	}
}

func (m *ServerManager) tick(ctx context.Context, state *serverState) {
	players, err := state.client.LiveScoreboard(ctx)
	if err != nil {
		m.markInactive(state, err)
		return
	}

	if state.inactiveSince != nil {
		outage := time.Since(*state.inactiveSince).Round(time.Second)
		log.Printf("[%s] Connectivity restored after %s, carrying totals forward", state.target.Name, outage)
		state.table.CarryForward(players)
		state.inactiveSince = nil
	}

	mapName, err := state.client.CurrentMap(ctx)
	if err != nil {
		log.Printf("[%s] Error reading current map: %v", state.target.Name, err)
		mapName = crcon.MapUnknown
	}

	gs, err := state.client.GameState(ctx)
	if err != nil {
		log.Printf("[%s] Error reading gamestate: %v", state.target.Name, err)
	}
	timer := gs.TimerRemaining
	if timer == nil {
		if t, err := state.client.RoundTimeRemaining(ctx); err == nil {
			timer = t
		}
	}

	if mapName != crcon.MapUnknown && mapName != "" && mapName != state.matchID {
		m.transitionMatch(ctx, state, mapName, players)
	}

	state.table.Observe(players)

	if !state.rewarded {
		if ended, reason := state.life.EvaluateEnd(timer, gs.AlliedScore, gs.AxisScore); ended {
			m.processMatchEnd(ctx, state, reason, false)
		}
	}

	m.publishStatus(state, true, timer, gs.AlliedScore, gs.AxisScore, len(players))
	m.saveSnapshot(ctx, state, false)
}

func (m *ServerManager) markInactive(state *serverState, cause error) {
	if state.inactiveSince == nil {
		now := time.Now().UTC()
		state.inactiveSince = &now
		log.Printf("[%s] Server unreachable, pausing match tracking: %v", state.target.Name, cause)
	}
	m.publishStatus(state, false, nil, 0, 0, 0)
}

// transitionMatch closes out the previous match identity and starts a new
// one. A map change observed before end detection fired still triggers the
// award pass: the match clearly ended, the signals were just missed.
func (m *ServerManager) transitionMatch(ctx context.Context, state *serverState, mapName string, players []crcon.ScoreboardPlayer) {
	if state.matchID != "" && !state.rewarded {
		log.Printf("[%s] Map changed (%s -> %s) before end detection, forcing award pass",
			state.target.Name, state.matchID, mapName)
		state.life.StartMatch() // leave any stale phase before forcing the pass
		m.processMatchEnd(ctx, state, "map changed", true)
	}

	skirmish := state.life.IsSkirmish(mapName)
	now := time.Now().UTC()
	state.matchUUID = uuid.NewString()
	state.matchID = mapName
	state.mapName = mapName
	state.matchStart = &now
	state.rewarded = skirmish // skirmish matches never get an award pass
	m.setLiveMessageID(state, "")
	state.table.Reset(players)
	state.life.StartMatch()

	log.Printf("[%s] New match %s on %s (skirmish=%v)", state.target.Name, state.matchUUID, mapName, skirmish)
	m.emitEvent(domain.Event{
		Type: domain.EventMatchStart, ServerID: state.target.ID, Timestamp: now,
		Data: domain.MatchStartEvent{Map: mapName, MatchUUID: state.matchUUID, Skirmish: skirmish},
	})
	m.notifier.MatchStarted(ctx, state.target.Name, mapName, skirmish)
}

// processMatchEnd freezes the standings, runs the award pass exactly once
// and persists the match. The rewarded flag flips before any network work so
// a crash mid-pass can never double-award after restore. A pass forced by a
// map change works from the accumulated table only: at that point the
// scoreboard endpoints can already serve the next map's reset counters.
func (m *ServerManager) processMatchEnd(ctx context.Context, state *serverState, reason string, mapChanged bool) {
	state.life.BeginReward()
	log.Printf("[%s] Match over on %s: %s", state.target.Name, state.mapName, reason)

	// The post-match board carries final totals (and sometimes support data
	// the live board lacks). Fold it in before freezing if it is available.
	if !mapChanged {
		if final, err := state.client.MapScoreboard(ctx); err == nil && len(final) > 0 {
			state.table.Observe(final)
		}
	}

	now := time.Now().UTC()
	started := now
	if state.matchStart != nil {
		started = *state.matchStart
	}
	var allied, axis int
	if gs, err := state.client.GameState(ctx); err == nil {
		allied, axis = gs.AlliedScore, gs.AxisScore
	}
	rec := domain.MatchRecord{
		ServerID:         state.target.ID,
		ServerName:       state.target.Name,
		MatchUUID:        state.matchUUID,
		MapName:          state.mapName,
		StartedAt:        started,
		EndedAt:          now,
		EndReason:        reason,
		AlliedScore:      allied,
		AxisScore:        axis,
		Players:          state.table.Scores(),
		SupportAvailable: state.table.SupportAvailable(),
	}

	state.rewarded = true
	m.saveSnapshot(ctx, state, true)

	m.emitEvent(domain.Event{
		Type: domain.EventMatchEnd, ServerID: state.target.ID, Timestamp: now,
		Data: domain.MatchEndEvent{Map: state.mapName, MatchUUID: state.matchUUID, EndReason: reason},
	})

	result := m.engine.Run(ctx, rec, state.index)

	matchID, err := m.store.InsertMatch(ctx, rec)
	if err != nil {
		log.Printf("[%s] Error storing match: %v", state.target.Name, err)
	} else if err := m.store.InsertAwards(ctx, matchID, result); err != nil {
		log.Printf("[%s] Error storing awards: %v", state.target.Name, err)
	}

	m.notifier.NotifyPlayers(ctx, state.client, result)
	m.notifier.AwardCompleted(ctx, rec, result, m.liveMessageID(state))
	m.setLiveMessageID(state, "")

	m.emitEvent(domain.Event{
		Type: domain.EventAwardPass, ServerID: state.target.ID, Timestamp: time.Now().UTC(),
		Data: result,
	})

	state.life.FinishReward()
	m.saveSnapshot(ctx, state, true)
}

func (m *ServerManager) publishStatus(state *serverState, online bool, timer *float64, allied, axis, playerCount int) {
	status := &domain.ServerStatus{
		ServerID:       state.target.ID,
		Name:           state.target.Name,
		Online:         online,
		MapName:        state.mapName,
		MatchUUID:      state.matchUUID,
		MatchStart:     state.matchStart,
		Rewarded:       state.rewarded,
		Phase:          state.life.Phase().String(),
		TimerRemaining: timer,
		AlliedScore:    allied,
		AxisScore:      axis,
		PlayerCount:    playerCount,
		InactiveSince:  state.inactiveSince,
		Standings:      state.table.Scores(),
		LastUpdated:    time.Now().UTC(),
	}

	m.mu.Lock()
	state.status = status
	m.mu.Unlock()

	m.emitEvent(domain.Event{
		Type: domain.EventServerUpdate, ServerID: state.target.ID,
		Timestamp: status.LastUpdated, Data: status,
	})
}

// saveSnapshot persists the server's tracking state. Routine saves are
// throttled to one per configured gap; forced saves (match boundaries,
// shutdown) always go through.
func (m *ServerManager) saveSnapshot(ctx context.Context, state *serverState, force bool) {
	if state.matchID == "" {
		return
	}
	now := time.Now().UTC()
	if !force && now.Sub(state.lastSnapshot) < m.cfg.Server.SnapshotMinGap {
		return
	}

	snap := domain.Snapshot{
		ServerID:      state.target.ID,
		MatchUUID:     state.matchUUID,
		MatchID:       state.matchID,
		MapName:       state.mapName,
		MatchStart:    state.matchStart,
		Rewarded:      state.rewarded,
		InactiveSince: state.inactiveSince,
		LiveMessageID: m.liveMessageID(state),
		Players:       state.table.Snapshot(),
		SavedAt:       now,
	}
	if err := m.store.SaveSnapshot(ctx, snap); err != nil {
		log.Printf("[%s] Error saving snapshot: %v", state.target.Name, err)
		return
	}
	state.lastSnapshot = now
}

// refreshLoop keeps the Discord live standings message current. It reads
// only published statuses and the mutex-guarded live message ID, never the
// poll-loop-owned state.
func (m *ServerManager) refreshLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Server.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshLiveMessages(ctx)
		}
	}
}

func (m *ServerManager) refreshLiveMessages(ctx context.Context) {
	for _, state := range m.servers {
		m.mu.RLock()
		status := state.status
		m.mu.RUnlock()

		if status == nil || !status.Online || status.Rewarded || status.MatchUUID == "" {
			continue
		}
		id := m.notifier.UpdateLiveStandings(ctx, m.liveMessageID(state), *status)
		m.setLiveMessageID(state, id)
	}
}

func (m *ServerManager) liveMessageID(state *serverState) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return state.liveMessageID
}

func (m *ServerManager) setLiveMessageID(state *serverState, id string) {
	m.mu.Lock()
	state.liveMessageID = id
	m.mu.Unlock()
}

// GetServerStatus returns the published status for a server, or nil.
func (m *ServerManager) GetServerStatus(serverID int64) *domain.ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, state := range m.servers {
		if state.target.ID == serverID && state.status != nil {
			return state.status
		}
	}
	return nil
}

// GetAllStatuses returns current status for all servers
func (m *ServerManager) GetAllStatuses() []domain.ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []domain.ServerStatus
	for _, state := range m.servers {
		if state.status != nil {
			statuses = append(statuses, *state.status)
		}
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ServerID < statuses[j].ServerID
	})
	return statuses
}

// MessagePlayer sends an in-game message on one server, for the operator API.
func (m *ServerManager) MessagePlayer(ctx context.Context, serverID int64, playerID, message string) error {
	for _, state := range m.servers {
		if state.target.ID == serverID {
			return state.client.MessagePlayer(ctx, playerID, message)
		}
	}
	return fmt.Errorf("server %d not found", serverID)
}

func (m *ServerManager) emitEvent(event domain.Event) {
	select {
	case m.events <- event:
	default:
		// Channel full, drop event
	}
}
