package storage

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kilian558/top-killier-vip/internal/domain"
	_ "modernc.org/sqlite"
)

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string.
// The Z suffix ensures the Go sqlite driver parses it back as UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Server methods ---

// UpsertServer creates or updates a server keyed by its base URL and fills
// in the assigned ID.
func (s *Store) UpsertServer(ctx context.Context, srv *domain.ServerTarget) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO servers (name, base_url)
		VALUES (?, ?)
		ON CONFLICT(base_url) DO UPDATE SET
			name = excluded.name
	`, srv.Name, srv.BaseURL)
	if err != nil {
		return err
	}

	// Always query for the ID (LastInsertId unreliable with ON CONFLICT)
	return s.db.QueryRowContext(ctx, "SELECT id FROM servers WHERE base_url = ?", srv.BaseURL).Scan(&srv.ID)
}

// GetServers returns all registered servers
func (s *Store) GetServers(ctx context.Context) ([]domain.ServerTarget, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, base_url FROM servers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []domain.ServerTarget
	for rows.Next() {
		var srv domain.ServerTarget
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.BaseURL); err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// --- Snapshot methods ---

// SaveSnapshot replaces a server's durable tracking state in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (server_id, match_uuid, match_id, map_name, match_start, rewarded, inactive_since, live_message_id, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			match_uuid = excluded.match_uuid,
			match_id = excluded.match_id,
			map_name = excluded.map_name,
			match_start = excluded.match_start,
			rewarded = excluded.rewarded,
			inactive_since = excluded.inactive_since,
			live_message_id = excluded.live_message_id,
			saved_at = excluded.saved_at
	`, snap.ServerID, snap.MatchUUID, snap.MatchID, snap.MapName,
		nullTimestamp(snap.MatchStart), boolToInt(snap.Rewarded),
		nullTimestamp(snap.InactiveSince), snap.LiveMessageID,
		formatTimestamp(snap.SavedAt))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_players WHERE server_id = ?", snap.ServerID); err != nil {
		return err
	}
	for _, p := range snap.Players {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_players (server_id, player_id, name, ord, kills, support, baseline_kills, baseline_support, offset_kills, offset_support, support_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, snap.ServerID, p.PlayerID, p.Name, p.Order, p.Kills, p.Support,
			p.BaselineKills, p.BaselineSupport, p.OffsetKills, p.OffsetSupport,
			boolToInt(p.SupportSeen))
		if err != nil {
			return fmt.Errorf("saving snapshot player %s: %w", p.PlayerID, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns a server's stored tracking state, or nil when none exists.
func (s *Store) LoadSnapshot(ctx context.Context, serverID int64) (*domain.Snapshot, error) {
	var (
		snap          domain.Snapshot
		matchStart    sql.NullTime
		rewarded      int
		inactiveSince sql.NullTime
		savedAt       time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT server_id, match_uuid, match_id, map_name, match_start, rewarded, inactive_since, live_message_id, saved_at
		FROM snapshots WHERE server_id = ?
	`, serverID).Scan(&snap.ServerID, &snap.MatchUUID, &snap.MatchID, &snap.MapName,
		&matchStart, &rewarded, &inactiveSince, &snap.LiveMessageID, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.MatchStart = scanNullTime(matchStart)
	snap.Rewarded = rewarded != 0
	snap.InactiveSince = scanNullTime(inactiveSince)
	snap.SavedAt = savedAt

	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, name, ord, kills, support, baseline_kills, baseline_support, offset_kills, offset_support, support_seen
		FROM snapshot_players WHERE server_id = ? ORDER BY ord
	`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p           domain.PlayerSnapshot
			supportSeen int
		)
		if err := rows.Scan(&p.PlayerID, &p.Name, &p.Order, &p.Kills, &p.Support,
			&p.BaselineKills, &p.BaselineSupport, &p.OffsetKills, &p.OffsetSupport,
			&supportSeen); err != nil {
			return nil, err
		}
		p.SupportSeen = supportSeen != 0
		snap.Players = append(snap.Players, p)
	}
	return &snap, rows.Err()
}

// --- Match methods ---

// InsertMatch stores a finished match: summary row, queryable per-player
// totals, and the full standings as a gzipped JSON archive.
func (s *Store) InsertMatch(ctx context.Context, rec domain.MatchRecord) (int64, error) {
	blob, err := compressScoreboard(rec.Players)
	if err != nil {
		return 0, fmt.Errorf("archiving scoreboard: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO matches (uuid, server_id, map_name, started_at, ended_at, end_reason, allied_score, axis_score, scoreboard)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.MatchUUID, rec.ServerID, rec.MapName, formatTimestamp(rec.StartedAt),
		formatTimestamp(rec.EndedAt), rec.EndReason, rec.AlliedScore, rec.AxisScore, blob)
	if err != nil {
		return 0, fmt.Errorf("inserting match: %w", err)
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, p := range rec.Players {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO match_players (match_id, player_id, name, kills, support)
			VALUES (?, ?, ?, ?, ?)
		`, matchID, p.PlayerID, p.Name, p.Kills, p.Support)
		if err != nil {
			return 0, fmt.Errorf("inserting match player %s: %w", p.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return matchID, nil
}

// GetMatches returns recent finished matches, newest first, without the
// archived standings.
func (s *Store) GetMatches(ctx context.Context, limit int) ([]domain.MatchSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.uuid, m.server_id, s.name, m.map_name, m.started_at, m.ended_at, m.end_reason, m.allied_score, m.axis_score
		FROM matches m JOIN servers s ON s.id = m.server_id
		ORDER BY m.ended_at DESC, m.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.MatchSummary
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// GetMatchByID returns one match with its archived standings, or nil when
// not found.
func (s *Store) GetMatchByID(ctx context.Context, id int64) (*domain.MatchSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.uuid, m.server_id, s.name, m.map_name, m.started_at, m.ended_at, m.end_reason, m.allied_score, m.axis_score
		FROM matches m JOIN servers s ON s.id = m.server_id
		WHERE m.id = ?
	`, id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var blob []byte
	if err := s.db.QueryRowContext(ctx, "SELECT scoreboard FROM matches WHERE id = ?", id).Scan(&blob); err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		players, err := decompressScoreboard(blob)
		if err != nil {
			return nil, fmt.Errorf("reading scoreboard archive: %w", err)
		}
		m.Players = players
	}
	return &m, nil
}

func scanMatch(row scanner) (domain.MatchSummary, error) {
	var (
		m                  domain.MatchSummary
		startedAt, endedAt time.Time
	)
	err := row.Scan(&m.ID, &m.UUID, &m.ServerID, &m.ServerName, &m.MapName,
		&startedAt, &endedAt, &m.EndReason, &m.AlliedScore, &m.AxisScore)
	if err != nil {
		return m, err
	}
	m.StartedAt = startedAt
	m.EndedAt = endedAt
	return m, nil
}

// --- Award methods ---

// InsertAwards stores every entry of one award pass against its match.
func (s *Store) InsertAwards(ctx context.Context, matchID int64, result domain.AwardResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range result.Entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO awards (pass_id, match_id, server_id, rank, player_id, name, kind, metric, hours, granted, reason, expiration, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, result.PassID, matchID, result.ServerID, e.Rank, e.PlayerID, e.Name,
			e.Kind, e.Metric, e.Hours, boolToInt(e.Granted), e.Reason,
			nullTimestamp(e.Expiration), formatTimestamp(result.CompletedAt))
		if err != nil {
			return fmt.Errorf("inserting award for %s: %w", e.PlayerID, err)
		}
	}

	return tx.Commit()
}

// GetAwards returns recent award entries, newest first.
func (s *Store) GetAwards(ctx context.Context, limit int) ([]domain.AwardRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.pass_id, a.match_id, a.server_id, s.name, m.map_name, a.created_at,
		       a.rank, a.player_id, a.name, a.kind, a.metric, a.hours, a.granted, a.reason, a.expiration
		FROM awards a
		JOIN matches m ON m.id = a.match_id
		JOIN servers s ON s.id = a.server_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AwardRecord
	for rows.Next() {
		var (
			rec        domain.AwardRecord
			createdAt  time.Time
			granted    int
			expiration sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.PassID, &rec.MatchID, &rec.ServerID,
			&rec.ServerName, &rec.MapName, &createdAt,
			&rec.Rank, &rec.PlayerID, &rec.Name, &rec.Kind, &rec.Metric,
			&rec.Hours, &granted, &rec.Reason, &expiration); err != nil {
			return nil, err
		}
		rec.CreatedAt = createdAt
		rec.Granted = granted != 0
		rec.Expiration = scanNullTime(expiration)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Leaderboard ---

// Leaderboard aggregates stored per-match totals into all-time standings,
// ordered by kills.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT mp.player_id,
		       (SELECT name FROM match_players WHERE player_id = mp.player_id ORDER BY match_id DESC LIMIT 1),
		       SUM(mp.kills), SUM(mp.support), COUNT(*),
		       (SELECT COUNT(*) FROM awards WHERE player_id = mp.player_id AND granted = 1)
		FROM match_players mp
		GROUP BY mp.player_id
		ORDER BY SUM(mp.kills) DESC, SUM(mp.support) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.TotalKills, &e.TotalSupport,
			&e.Matches, &e.Awards); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Scoreboard archive ---

func compressScoreboard(players []domain.PlayerScore) ([]byte, error) {
	data, err := json.Marshal(players)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressScoreboard(blob []byte) ([]domain.PlayerScore, error) {
	r, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var players []domain.PlayerScore
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, err
	}
	return players, nil
}
