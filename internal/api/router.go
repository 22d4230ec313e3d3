package api

import (
	"net/http"

	"github.com/kilian558/top-killier-vip/internal/auth"
	"github.com/kilian558/top-killier-vip/internal/storage"
	"github.com/kilian558/top-killier-vip/internal/tracker"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux     *http.ServeMux
	store   *storage.Store
	manager *tracker.ServerManager
	wsHub   *WebSocketHub
	auth    *auth.Service
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, manager *tracker.ServerManager, authService *auth.Service) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		store:   store,
		manager: manager,
		wsHub:   NewWebSocketHub(),
		auth:    authService,
	}

	// API routes
	r.mux.HandleFunc("GET /api/servers", r.handleGetServers)
	r.mux.HandleFunc("GET /api/servers/{id}/live", r.handleGetServerLive)

	r.mux.HandleFunc("GET /api/matches", r.handleGetMatches)
	r.mux.HandleFunc("GET /api/matches/{id}", r.handleGetMatch)

	r.mux.HandleFunc("GET /api/awards", r.handleGetAwards)
	r.mux.HandleFunc("GET /api/stats/leaderboard", r.handleGetLeaderboard)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)

	// Operator routes (authenticated)
	r.mux.HandleFunc("POST /api/servers/{id}/message", r.requireAuth(r.handleMessagePlayer))

	// WebSocket endpoint
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartWebSocketHub starts broadcasting events to WebSocket clients
func (r *Router) StartWebSocketHub() {
	go r.wsHub.Run()

	go func() {
		for event := range r.manager.Events() {
			r.wsHub.Broadcast(event)
		}
	}()
}
