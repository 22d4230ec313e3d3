package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server       ServerConfig   `yaml:"server"`
	Database     DatabaseConfig `yaml:"database"`
	Auth         AuthConfig     `yaml:"auth"`
	Awards       AwardConfig    `yaml:"awards"`
	Exclusions   Exclusions     `yaml:"exclusions"`
	Discord      DiscordConfig  `yaml:"discord"`
	CRCONServers []CRCONServer  `yaml:"crcon_servers"`
}

// ServerConfig holds HTTP server and scheduling settings
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	HTTPPort        int           `yaml:"http_port"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	SnapshotMinGap  time.Duration `yaml:"snapshot_min_gap"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds operator API authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
	AdminUser     string        `yaml:"admin_user"`
	AdminHash     string        `yaml:"admin_hash"` // bcrypt hash, generate with "topvip user hash"
}

// AwardConfig holds the award policy, including the end-of-round
// detection thresholds.
type AwardConfig struct {
	KillerCount     int      `yaml:"killer_count"`
	KillerHours     int      `yaml:"killer_hours"`
	SupportCount    int      `yaml:"support_count"`
	SupportHours    int      `yaml:"support_hours"`
	WinScore        int      `yaml:"win_score"`
	NearEndSeconds  float64  `yaml:"near_end_seconds"`
	FinalEndSeconds float64  `yaml:"final_end_seconds"`
	TimerStrikes    int      `yaml:"timer_strikes"`
	SkirmishMarkers []string `yaml:"skirmish_markers"`
}

// Exclusions lists players that never receive a grant
type Exclusions struct {
	PlayerIDs []string `yaml:"player_ids"`
	Names     []string `yaml:"names"` // matched case-insensitively
}

// DiscordConfig holds the operator notification channel
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
}

// CRCONServer represents one CRCON endpoint to monitor
type CRCONServer struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Set defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.PollInterval == 0 {
		cfg.Server.PollInterval = 5 * time.Second
	}
	if cfg.Server.RefreshInterval == 0 {
		cfg.Server.RefreshInterval = 30 * time.Second
	}
	if cfg.Server.SnapshotMinGap == 0 {
		cfg.Server.SnapshotMinGap = 20 * time.Second
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/topvip/topvip.db"
	}

	// Auth defaults
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}

	// Award policy defaults
	if cfg.Awards.KillerCount == 0 {
		cfg.Awards.KillerCount = 3
	}
	if cfg.Awards.KillerHours == 0 {
		cfg.Awards.KillerHours = 24
	}
	if cfg.Awards.SupportCount == 0 {
		cfg.Awards.SupportCount = 2
	}
	if cfg.Awards.SupportHours == 0 {
		cfg.Awards.SupportHours = 24
	}
	if cfg.Awards.WinScore == 0 {
		cfg.Awards.WinScore = 5
	}
	if cfg.Awards.NearEndSeconds == 0 {
		cfg.Awards.NearEndSeconds = 90
	}
	if cfg.Awards.FinalEndSeconds == 0 {
		cfg.Awards.FinalEndSeconds = 30
	}
	if cfg.Awards.TimerStrikes == 0 {
		cfg.Awards.TimerStrikes = 2
	}
	if len(cfg.Awards.SkirmishMarkers) == 0 {
		cfg.Awards.SkirmishMarkers = []string{"skm", "skirmish"}
	}
	if cfg.Discord.Username == "" {
		cfg.Discord.Username = "Top Killer VIP"
	}

	// Servers without a URL are treated as not configured
	servers := cfg.CRCONServers[:0]
	for _, srv := range cfg.CRCONServers {
		if srv.BaseURL != "" {
			servers = append(servers, srv)
		}
	}
	cfg.CRCONServers = servers

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.CRCONServers) == 0 {
		return fmt.Errorf("no CRCON servers configured")
	}
	for i, srv := range c.CRCONServers {
		if srv.APIToken == "" {
			return fmt.Errorf("crcon_servers[%d] (%s): api_token is required", i, srv.BaseURL)
		}
	}
	return nil
}
