// topvip - Hell Let Loose top killer VIP rewards daemon
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/kilian558/top-killier-vip/internal/api"
	"github.com/kilian558/top-killier-vip/internal/auth"
	"github.com/kilian558/top-killier-vip/internal/config"
	"github.com/kilian558/top-killier-vip/internal/domain"
	"github.com/kilian558/top-killier-vip/internal/notify"
	"github.com/kilian558/top-killier-vip/internal/storage"
	"github.com/kilian558/top-killier-vip/internal/tracker"
)

var version = "dev"

const defaultConfigPath = "/etc/topvip/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "standings":
		cmdStandings(os.Args[2:])
	case "matches":
		cmdMatches(os.Args[2:])
	case "awards":
		cmdAwards(os.Args[2:])
	case "leaderboard":
		cmdLeaderboard(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "version":
		fmt.Printf("topvip %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: topvip <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                    Start the VIP rewards daemon")
	fmt.Println("  status                   Show tracking status of all servers")
	fmt.Println("  standings --server N     Show live standings on one server")
	fmt.Println("  matches [--recent N]     Show recent finished matches (default: 20)")
	fmt.Println("  awards [--recent N]      Show recent VIP awards (default: 20)")
	fmt.Println("  leaderboard [--top N]    Show all-time top players (default: 20)")
	fmt.Println("  user hash                Generate a bcrypt hash for the config admin account")
	fmt.Println("  version                  Show version")
	fmt.Println("  help                     Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/topvip/config.yml)")
	fmt.Println("  --url <url>        Base URL of the running daemon (default: derived from config)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  topvip serve --config /etc/topvip/config.yml")
	fmt.Println("  topvip standings --server 1")
	fmt.Println("  topvip awards --recent 50")
}

// cmdServe starts the rewards daemon
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfgPath := *configPath
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			cfgPath = defaultConfigPath
		} else {
			log.Fatalf("No config file found at %s. Use --config to specify a config file.", defaultConfigPath)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("topvip %s starting...", version)
	log.Printf("Monitoring %d CRCON server(s)", len(cfg.CRCONServers))

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized at %s", cfg.Database.Path)

	notifier := notify.NewNotifier(notify.NewWebhook(cfg.Discord.WebhookURL, cfg.Discord.Username))
	if cfg.Discord.WebhookURL == "" {
		log.Printf("No Discord webhook configured, operator notifications disabled")
	}

	manager := tracker.NewServerManager(cfg, store, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		log.Fatalf("Failed to start server manager: %v", err)
	}
	log.Printf("Server manager started, polling every %v", cfg.Server.PollInterval)

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration, cfg.Auth.AdminUser, cfg.Auth.AdminHash)
	if cfg.Auth.JWTSecret == "" {
		log.Printf("Warning: No JWT secret configured. Auth tokens will use an empty secret.")
	}

	router := api.NewRouter(store, manager, authService)
	router.StartWebSocketHub()

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	}

	// Sequential shutdown
	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping server manager...")
	manager.Stop()

	cancel()
	log.Println("Shutdown complete")
}

// CLI helper variables
var baseURL = "http://localhost:8080"

// loadCLIConfig resolves the daemon URL from flags or the config file
func loadCLIConfig(configPath, url string) {
	if url != "" {
		baseURL = url
		return
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return
	}
	host := cfg.Server.ListenAddr
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	baseURL = fmt.Sprintf("http://%s:%d", host, cfg.Server.HTTPPort)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the running daemon")
	fs.Parse(args)

	loadCLIConfig(*configPath, *url)

	var statuses []domain.ServerStatus
	if err := getJSON("/api/servers", &statuses); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tMAP\tPHASE\tSCORE\tTIMER\tPLAYERS\tREWARDED\tSTATUS")
	fmt.Fprintln(w, "------\t---\t-----\t-----\t-----\t-------\t--------\t------")

	for _, s := range statuses {
		statusStr := "ONLINE"
		if !s.Online {
			statusStr = "OFFLINE"
		}
		timer := "-"
		if s.TimerRemaining != nil {
			remaining := int(*s.TimerRemaining)
			timer = fmt.Sprintf("%02d:%02d", remaining/60, remaining%60)
		}
		mapName := s.MapName
		if mapName == "" {
			mapName = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d:%d\t%s\t%d\t%v\t%s\n",
			s.Name, mapName, s.Phase, s.AlliedScore, s.AxisScore, timer, s.PlayerCount, s.Rewarded, statusStr)
	}
	w.Flush()
}

func cmdStandings(args []string) {
	fs := flag.NewFlagSet("standings", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the running daemon")
	serverID := fs.Int64("server", 1, "server ID")
	fs.Parse(args)

	loadCLIConfig(*configPath, *url)

	var status domain.ServerStatus
	if err := getJSON(fmt.Sprintf("/api/servers/%d/live", *serverID), &status); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s - %s (%s)\n\n", status.Name, status.MapName, status.Phase)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tKILLS\tSUPPORT")
	fmt.Fprintln(w, "----\t------\t-----\t-------")

	standings := append([]domain.PlayerScore(nil), status.Standings...)
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].Kills > standings[j].Kills })
	for i, p := range standings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", i+1, p.Name, p.Kills, p.Support)
	}
	w.Flush()
}

func cmdMatches(args []string) {
	fs := flag.NewFlagSet("matches", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the running daemon")
	recent := fs.Int("recent", 20, "number of matches to show")
	fs.Parse(args)

	loadCLIConfig(*configPath, *url)

	var matches []domain.MatchSummary
	if err := getJSON(fmt.Sprintf("/api/matches?limit=%d", *recent), &matches); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVER\tMAP\tSCORE\tENDED\tREASON")
	fmt.Fprintln(w, "--\t------\t---\t-----\t-----\t------")
	for _, m := range matches {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d:%d\t%s\t%s\n",
			m.ID, m.ServerName, m.MapName, m.AlliedScore, m.AxisScore,
			m.EndedAt.Local().Format("2006-01-02 15:04"), m.EndReason)
	}
	w.Flush()
}

func cmdAwards(args []string) {
	fs := flag.NewFlagSet("awards", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the running daemon")
	recent := fs.Int("recent", 20, "number of awards to show")
	fs.Parse(args)

	loadCLIConfig(*configPath, *url)

	var awards []domain.AwardRecord
	if err := getJSON(fmt.Sprintf("/api/awards?limit=%d", *recent), &awards); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSERVER\tMAP\tKIND\tRANK\tPLAYER\tMETRIC\tGRANTED")
	fmt.Fprintln(w, "----\t------\t---\t----\t----\t------\t------\t-------")
	for _, a := range awards {
		outcome := "yes"
		if !a.Granted {
			outcome = "no (" + a.Reason + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			a.CreatedAt.Local().Format("2006-01-02 15:04"), a.ServerName, a.MapName,
			a.Kind, a.Rank, a.Name, a.Metric, outcome)
	}
	w.Flush()
}

func cmdLeaderboard(args []string) {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the running daemon")
	top := fs.Int("top", 20, "number of players to show")
	fs.Parse(args)

	loadCLIConfig(*configPath, *url)

	var entries []domain.LeaderboardEntry
	if err := getJSON(fmt.Sprintf("/api/stats/leaderboard?limit=%d", *top), &entries); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tKILLS\tSUPPORT\tMATCHES\tAWARDS")
	fmt.Fprintln(w, "----\t------\t-----\t-------\t-------\t------")
	for i, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n",
			i+1, e.Name, e.TotalKills, e.TotalSupport, e.Matches, e.Awards)
	}
	w.Flush()
}

func cmdUser(args []string) {
	if len(args) < 1 || args[0] != "hash" {
		fmt.Fprintln(os.Stderr, "Usage: topvip user hash")
		os.Exit(1)
	}

	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read password: %v\n", err)
		os.Exit(1)
	}
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "Password must be at least 8 characters")
		os.Exit(1)
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read password: %v\n", err)
		os.Exit(1)
	}
	if string(password) != string(confirm) {
		fmt.Fprintln(os.Stderr, "Passwords do not match")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Add to your config under auth:")
	fmt.Printf("  admin_hash: %q\n", hash)
}

func getJSON(path string, target interface{}) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
