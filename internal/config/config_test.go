package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
crcon_servers:
  - name: Server 1
    base_url: http://rcon.example:8010
    api_token: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("http port = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Server.PollInterval != 5*time.Second {
		t.Errorf("poll interval = %v, want 5s", cfg.Server.PollInterval)
	}
	if cfg.Server.RefreshInterval != 30*time.Second {
		t.Errorf("refresh interval = %v, want 30s", cfg.Server.RefreshInterval)
	}
	if cfg.Awards.KillerCount != 3 || cfg.Awards.KillerHours != 24 {
		t.Errorf("killer policy = %d/%dh, want 3/24h", cfg.Awards.KillerCount, cfg.Awards.KillerHours)
	}
	if cfg.Awards.SupportCount != 2 || cfg.Awards.SupportHours != 24 {
		t.Errorf("support policy = %d/%dh, want 2/24h", cfg.Awards.SupportCount, cfg.Awards.SupportHours)
	}
	if cfg.Awards.WinScore != 5 {
		t.Errorf("win score = %d, want 5", cfg.Awards.WinScore)
	}
	if cfg.Awards.NearEndSeconds != 90 || cfg.Awards.FinalEndSeconds != 30 {
		t.Errorf("end thresholds = %v/%v, want 90/30", cfg.Awards.NearEndSeconds, cfg.Awards.FinalEndSeconds)
	}
	if len(cfg.Awards.SkirmishMarkers) == 0 {
		t.Error("skirmish markers not defaulted")
	}
	if cfg.Discord.Username != "Top Killer VIP" {
		t.Errorf("discord username = %q", cfg.Discord.Username)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: 0.0.0.0
  http_port: 9090
  poll_interval: 10s
awards:
  killer_count: 5
  killer_hours: 48
  win_score: 4
exclusions:
  player_ids: ["123"]
  names: ["Clanmate"]
crcon_servers:
  - name: Server 1
    base_url: http://rcon.example:8010
    api_token: secret
  - name: Server 2
    base_url: http://rcon2.example:8010
    api_token: secret2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Server.HTTPPort != 9090 || cfg.Server.PollInterval != 10*time.Second {
		t.Errorf("server config = %+v", cfg.Server)
	}
	if cfg.Awards.KillerCount != 5 || cfg.Awards.KillerHours != 48 || cfg.Awards.WinScore != 4 {
		t.Errorf("awards config = %+v", cfg.Awards)
	}
	if len(cfg.CRCONServers) != 2 {
		t.Errorf("servers = %+v", cfg.CRCONServers)
	}
	if len(cfg.Exclusions.PlayerIDs) != 1 || len(cfg.Exclusions.Names) != 1 {
		t.Errorf("exclusions = %+v", cfg.Exclusions)
	}
}

func TestLoad_SkipsServersWithoutURL(t *testing.T) {
	path := writeConfig(t, `
crcon_servers:
  - name: Configured
    base_url: http://rcon.example:8010
    api_token: secret
  - name: Placeholder
    base_url: ""
    api_token: unused
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if len(cfg.CRCONServers) != 1 || cfg.CRCONServers[0].Name != "Configured" {
		t.Errorf("servers = %+v, want only the configured one", cfg.CRCONServers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no servers", `server: {http_port: 8080}`},
		{"missing token", "crcon_servers:\n  - name: S1\n    base_url: http://rcon.example:8010\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}
