package crcon

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MapUnknown is the sentinel returned when no extraction strategy can
// resolve a map name. It never triggers match-end or reward logic.
const MapUnknown = "Unknown"

// Extraction strategies. Each is an ordered list of alternatives tried in
// sequence against a decoded payload; the shapes come from observed CRCON
// deployments and none of them is guaranteed by the API.

func decodeAny(raw json.RawMessage) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// mapNameKeys are tried in order against a map-shaped get_map payload.
var mapNameKeys = []string{"id", "map", "name", "map_name", "layer", "layer_name"}

// ExtractMapName resolves the current map name from a get_map payload, which
// may be a bare string, a flat object, or an object nesting the map record.
func ExtractMapName(raw json.RawMessage) string {
	switch v := decodeAny(raw).(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]interface{}:
		for _, key := range mapNameKeys {
			switch field := v[key].(type) {
			case string:
				if field != "" {
					return field
				}
			case map[string]interface{}:
				// Nested map record: prefer its id, then its name
				if s, ok := field["id"].(string); ok && s != "" {
					return s
				}
				if s, ok := field["name"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return MapUnknown
}

// teamKeys are the scoreboard groupings tried before the flat fallbacks.
var teamKeys = []string{"allied", "axis", "team1", "team2"}

// ExtractPlayers normalizes a scoreboard payload into player rows. Supported
// shapes, in order: team-keyed object, object with a stats or players array,
// object keyed by player ID, bare array.
func ExtractPlayers(raw json.RawMessage) []ScoreboardPlayer {
	var players []ScoreboardPlayer

	appendRows := func(rows []interface{}) {
		for _, row := range rows {
			if m, ok := row.(map[string]interface{}); ok {
				if p, ok := playerFromFields(m, ""); ok {
					players = append(players, p)
				}
			}
		}
	}

	switch v := decodeAny(raw).(type) {
	case []interface{}:
		appendRows(v)

	case map[string]interface{}:
		for _, key := range teamKeys {
			if rows, ok := v[key].([]interface{}); ok {
				appendRows(rows)
			}
		}
		if len(players) > 0 {
			return players
		}

		if rows, ok := v["stats"].([]interface{}); ok {
			appendRows(rows)
		}
		if len(players) == 0 {
			if rows, ok := v["players"].([]interface{}); ok {
				appendRows(rows)
			}
		}
		if len(players) > 0 {
			return players
		}

		// Last resort: an object keyed by player ID
		for id, row := range v {
			switch field := row.(type) {
			case map[string]interface{}:
				if p, ok := playerFromFields(field, id); ok {
					players = append(players, p)
				}
			case []interface{}:
				appendRows(field)
			}
		}
	}

	return players
}

var (
	playerIDKeys   = []string{"player_id", "steam_id_64", "steam_id", "playerid"}
	playerNameKeys = []string{"name", "player_name", "player"}
	supportKeys    = []string{"support", "support_points", "support_score", "score_support", "supportScore", "supportPoints", "supp"}
)

// playerFromFields builds one normalized row. fallbackID is used when the
// payload keys rows by player ID instead of embedding it.
func playerFromFields(m map[string]interface{}, fallbackID string) (ScoreboardPlayer, bool) {
	p := ScoreboardPlayer{PlayerID: fallbackID}

	for _, key := range playerIDKeys {
		if s := stringValue(m[key]); s != "" && s != "None" {
			p.PlayerID = s
			break
		}
	}
	if p.PlayerID == "" || p.PlayerID == "None" {
		return ScoreboardPlayer{}, false
	}

	for _, key := range playerNameKeys {
		if s := stringValue(m[key]); s != "" {
			p.Name = s
			break
		}
	}
	if p.Name == "" {
		p.Name = "Unknown"
	}

	if n, ok := intValue(m["kills"]); ok {
		p.Kills = n
	}
	p.Support = ExtractSupport(m)
	return p, true
}

// ExtractSupport reads a player's support points, trying every key variant
// observed in the wild. Nil means the payload carries no support metric.
func ExtractSupport(m map[string]interface{}) *int {
	for _, key := range supportKeys {
		if v, present := m[key]; present && v != nil {
			if n, ok := intValue(v); ok {
				return &n
			}
			return nil
		}
	}
	return nil
}

var timerKeys = []string{"remaining_time", "time_remaining", "raw_time_remaining", "remaining_time_seconds", "remaining_time_sec", "remaining_time_s"}

// ExtractTimer reads the remaining round time in seconds. Values may be
// numeric seconds or clock strings like "1:30:00" or "11:51".
func ExtractTimer(m map[string]interface{}) *float64 {
	for _, key := range timerKeys {
		if v, present := m[key]; present && v != nil {
			if t := timerValue(v); t != nil {
				return t
			}
		}
	}
	return nil
}

func timerValue(v interface{}) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
		return parseClock(t)
	}
	return nil
}

// parseClock converts "H:MM:SS" or "MM:SS" to seconds.
func parseClock(s string) *float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		total = total*60 + n
	}
	f := float64(total)
	return &f
}

var (
	alliedScoreKeys = []string{"allied_score", "team1_score", "score_allied", "allied", "team1"}
	axisScoreKeys   = []string{"axis_score", "team2_score", "score_axis", "axis", "team2"}
)

// ExtractTeamScores reads the team scores from a gamestate payload. Values
// may be bare numbers or nested objects with a score field. Missing fields
// read as zero, which never satisfies a winning threshold on its own.
func ExtractTeamScores(m map[string]interface{}) (allied, axis int) {
	return teamScore(m, alliedScoreKeys), teamScore(m, axisScoreKeys)
}

func teamScore(m map[string]interface{}, keys []string) int {
	for _, key := range keys {
		switch v := m[key].(type) {
		case nil:
			continue
		case map[string]interface{}:
			if n, ok := intValue(v["score"]); ok {
				return n
			}
		default:
			if n, ok := intValue(v); ok {
				return n
			}
		}
	}
	return 0
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
