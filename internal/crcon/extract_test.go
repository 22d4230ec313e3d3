package crcon

import (
	"encoding/json"
	"testing"
)

func TestExtractMapName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"carentan_warfare"`, "carentan_warfare"},
		{"id field", `{"id": "stmariedumont_warfare"}`, "stmariedumont_warfare"},
		{"map field string", `{"map": "foy_offensive_ger"}`, "foy_offensive_ger"},
		{"nested map record", `{"map": {"id": "utahbeach_warfare", "name": "UTAH BEACH"}}`, "utahbeach_warfare"},
		{"nested map record name only", `{"map": {"name": "OMAHA BEACH"}}`, "OMAHA BEACH"},
		{"layer name", `{"layer_name": "kursk_warfare_night"}`, "kursk_warfare_night"},
		{"empty object", `{}`, MapUnknown},
		{"empty string", `""`, MapUnknown},
		{"number", `42`, MapUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMapName(json.RawMessage(tt.raw))
			if got != tt.want {
				t.Errorf("ExtractMapName(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractPlayers_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []string
	}{
		{
			"bare list",
			`[{"player_id": "1", "name": "a", "kills": 3}, {"player_id": "2", "name": "b", "kills": 1}]`,
			[]string{"1", "2"},
		},
		{
			"team keyed",
			`{"allied": [{"player_id": "1", "name": "a", "kills": 2}], "axis": [{"player_id": "2", "name": "b", "kills": 5}]}`,
			[]string{"1", "2"},
		},
		{
			"stats array",
			`{"stats": [{"steam_id_64": "76561198000000001", "player": "c", "kills": 7}]}`,
			[]string{"76561198000000001"},
		},
		{
			"players array",
			`{"players": [{"player_id": "9", "player_name": "d"}]}`,
			[]string{"9"},
		},
		{
			"id keyed object",
			`{"76561198000000002": {"name": "e", "kills": 4}}`,
			[]string{"76561198000000002"},
		},
		{
			"rows without id are dropped",
			`[{"name": "ghost", "kills": 10}, {"player_id": "None", "name": "x"}, {"player_id": "3", "name": "y"}]`,
			[]string{"3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			players := ExtractPlayers(json.RawMessage(tt.raw))
			if len(players) != len(tt.wantIDs) {
				t.Fatalf("got %d players, want %d", len(players), len(tt.wantIDs))
			}
			seen := make(map[string]bool)
			for _, p := range players {
				seen[p.PlayerID] = true
			}
			for _, id := range tt.wantIDs {
				if !seen[id] {
					t.Errorf("missing player id %q in %v", id, players)
				}
			}
		})
	}
}

func TestExtractPlayers_Fields(t *testing.T) {
	raw := `[{"player_id": "1", "name": "alpha", "kills": 12, "support_points": 340}]`
	players := ExtractPlayers(json.RawMessage(raw))
	if len(players) != 1 {
		t.Fatalf("got %d players, want 1", len(players))
	}
	p := players[0]
	if p.Name != "alpha" || p.Kills != 12 {
		t.Errorf("unexpected row: %+v", p)
	}
	if p.Support == nil || *p.Support != 340 {
		t.Errorf("support = %v, want 340", p.Support)
	}
}

func TestExtractSupport(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want *int
	}{
		{"support key", `{"support": 120}`, intPtr(120)},
		{"camelCase", `{"supportScore": 55}`, intPtr(55)},
		{"string number", `{"supp": "17"}`, intPtr(17)},
		{"absent", `{"kills": 3}`, nil},
		{"null", `{"support": null}`, nil},
		{"unparseable", `{"support": "n/a"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(tt.row), &m); err != nil {
				t.Fatal(err)
			}
			got := ExtractSupport(m)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ExtractSupport(%s) = %v, want %v", tt.row, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ExtractSupport(%s) = %d, want %d", tt.row, *got, *tt.want)
			}
		})
	}
}

func TestExtractTimer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"float seconds", `{"remaining_time": 4749.0}`, floatPtr(4749)},
		{"string seconds", `{"time_remaining": "300.5"}`, floatPtr(300.5)},
		{"clock hms", `{"raw_time_remaining": "0:11:51"}`, floatPtr(711)},
		{"clock ms", `{"remaining_time": "11:51"}`, floatPtr(711)},
		{"absent", `{"other": 1}`, nil},
		{"garbage string", `{"remaining_time": "soon"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(tt.raw), &m); err != nil {
				t.Fatal(err)
			}
			got := ExtractTimer(m)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ExtractTimer(%s) = %v, want %v", tt.raw, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ExtractTimer(%s) = %v, want %v", tt.raw, *got, *tt.want)
			}
		})
	}
}

func TestExtractTeamScores(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantAllied int
		wantAxis   int
	}{
		{"canonical", `{"allied_score": 3, "axis_score": 2}`, 3, 2},
		{"team numbered", `{"team1_score": 5, "team2_score": 0}`, 5, 0},
		{"nested score objects", `{"allied": {"score": 4}, "axis": {"score": 1}}`, 4, 1},
		{"missing reads zero", `{"remaining_time": 100}`, 0, 0},
		{"string numbers", `{"allied_score": "2", "axis_score": "3"}`, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(tt.raw), &m); err != nil {
				t.Fatal(err)
			}
			allied, axis := ExtractTeamScores(m)
			if allied != tt.wantAllied || axis != tt.wantAxis {
				t.Errorf("ExtractTeamScores(%s) = %d:%d, want %d:%d", tt.raw, allied, axis, tt.wantAllied, tt.wantAxis)
			}
		})
	}
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }
