// Package crcon is a client for the CRCON HTTP administration API.
//
// The API is stateless and its payload shapes drift between versions, so
// every read goes through the extraction strategies in extract.go instead of
// strict struct decoding. Any failure is reported to the caller as an error;
// callers treat it as "no data this tick", never as fatal.
package crcon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ScoreboardPlayer is one normalized row of a live or map scoreboard.
// Support is nil when the payload carries no support metric at all.
type ScoreboardPlayer struct {
	PlayerID string
	Name     string
	Kills    int
	Support  *int
}

// Gamestate is the normalized match timer and team score reading.
type Gamestate struct {
	TimerRemaining *float64
	AlliedScore    int
	AxisScore      int
}

// VIP is one privilege holder as reported by get_vip_ids.
type VIP struct {
	PlayerID   string
	Name       string
	Expiration string // raw expiration string, parsed by the award engine
}

// Client talks to a single CRCON endpoint.
type Client struct {
	name    string
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a client for one CRCON endpoint. The timeout bounds
// every individual call.
func NewClient(name, baseURL, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		name:    name,
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Name returns the display name for this endpoint.
func (c *Client) Name() string { return c.name }

// SetName updates the display name, refreshed once at startup from get_status.
func (c *Client) SetName(name string) { c.name = name }

// BaseURL returns the endpoint identity.
func (c *Client) BaseURL() string { return c.baseURL }

// envelope is the standard CRCON response wrapper. Some deployments return
// the payload bare, so Result may be absent.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Failed bool            `json:"failed"`
	Error  string          `json:"error"`
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		if len(b) > 200 {
			b = b[:200]
		}
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, string(b))
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Failed {
		return nil, fmt.Errorf("command failed: %s", env.Error)
	}
	if env.Result == nil {
		// Bare payload without the result wrapper
		return json.RawMessage(b), nil
	}
	return env.Result, nil
}

// Status returns the server's advertised display name.
func (c *Client) Status(ctx context.Context) (string, error) {
	raw, err := c.get(ctx, "/api/get_status")
	if err != nil {
		return "", err
	}
	var status struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}
	return status.Name, nil
}

// CurrentMap returns the current map name, which doubles as the match
// identity. The sentinel "Unknown" is returned when no strategy matches;
// callers must never treat it as a match boundary.
func (c *Client) CurrentMap(ctx context.Context) (string, error) {
	raw, err := c.get(ctx, "/api/get_map")
	if err != nil {
		return "", err
	}
	return ExtractMapName(raw), nil
}

// LiveScoreboard returns the scoreboard for currently connected players.
func (c *Client) LiveScoreboard(ctx context.Context) ([]ScoreboardPlayer, error) {
	raw, err := c.get(ctx, "/api/get_live_scoreboard")
	if err != nil {
		return nil, err
	}
	return ExtractPlayers(raw), nil
}

// MapScoreboard returns the per-map scoreboard. Some deployments restrict it,
// so callers fall back to the live scoreboard on error.
func (c *Client) MapScoreboard(ctx context.Context) ([]ScoreboardPlayer, error) {
	raw, err := c.get(ctx, "/api/get_map_scoreboard")
	if err != nil {
		return nil, err
	}
	return ExtractPlayers(raw), nil
}

// GameState returns the match timer and team scores.
func (c *Client) GameState(ctx context.Context) (Gamestate, error) {
	raw, err := c.get(ctx, "/api/get_gamestate")
	if err != nil {
		return Gamestate{}, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Gamestate{}, fmt.Errorf("decode gamestate: %w", err)
	}

	gs := Gamestate{TimerRemaining: ExtractTimer(fields)}
	gs.AlliedScore, gs.AxisScore = ExtractTeamScores(fields)
	return gs, nil
}

// RoundTimeRemaining returns the remaining round time in seconds from the
// dedicated endpoint. Used as a fallback when the gamestate carries no timer.
func (c *Client) RoundTimeRemaining(ctx context.Context) (*float64, error) {
	raw, err := c.get(ctx, "/api/get_round_time_remaining")
	if err != nil {
		return nil, err
	}
	return timerValue(decodeAny(raw)), nil
}

// VIPs returns all current privilege holders keyed by player ID.
func (c *Client) VIPs(ctx context.Context) (map[string]VIP, error) {
	raw, err := c.get(ctx, "/api/get_vip_ids")
	if err != nil {
		return nil, err
	}

	var rows []struct {
		PlayerID      string `json:"player_id"`
		SteamID       string `json:"steam_id_64"`
		Name          string `json:"name"`
		VIPExpiration string `json:"vip_expiration"`
		Expiration    string `json:"expiration"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode vip list: %w", err)
	}

	vips := make(map[string]VIP, len(rows))
	for _, row := range rows {
		id := row.PlayerID
		if id == "" {
			id = row.SteamID
		}
		if id == "" {
			continue
		}
		exp := row.VIPExpiration
		if exp == "" {
			exp = row.Expiration
		}
		vips[id] = VIP{PlayerID: id, Name: row.Name, Expiration: exp}
	}
	return vips, nil
}

// AddVIP grants a privilege with the given expiration.
func (c *Client) AddVIP(ctx context.Context, playerID string, expiration time.Time, description string) error {
	_, err := c.post(ctx, "/api/add_vip", map[string]string{
		"player_id":   playerID,
		"expiration":  expiration.UTC().Format("2006-01-02T15:04:05Z"),
		"description": description,
	})
	return err
}

// RemoveVIP revokes a privilege. CRCON's add_vip replaces rather than
// extends, so grants are issued as remove-then-add.
func (c *Client) RemoveVIP(ctx context.Context, playerID string) error {
	_, err := c.post(ctx, "/api/remove_vip", map[string]string{
		"player_id": playerID,
	})
	return err
}

// MessagePlayer sends a private in-game message.
func (c *Client) MessagePlayer(ctx context.Context, playerID, message string) error {
	_, err := c.post(ctx, "/api/message_player", map[string]string{
		"player_id": playerID,
		"message":   message,
	})
	return err
}
