package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseID parses an ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	idStr := req.PathValue(param)
	return strconv.ParseInt(idStr, 10, 64)
}

// parseLimit reads an optional limit query parameter
func parseLimit(req *http.Request, fallback int) int {
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// handleGetServers returns the live tracking status of all servers
func (r *Router) handleGetServers(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.manager.GetAllStatuses())
}

// handleGetServerLive returns the live status of one server
func (r *Router) handleGetServerLive(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	status := r.manager.GetServerStatus(id)
	if status == nil {
		writeError(w, http.StatusNotFound, "server status not available")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGetMatches returns recent finished matches
func (r *Router) handleGetMatches(w http.ResponseWriter, req *http.Request) {
	matches, err := r.store.GetMatches(req.Context(), parseLimit(req, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// handleGetMatch returns one match with its full final standings
func (r *Router) handleGetMatch(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	match, err := r.store.GetMatchByID(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if match == nil {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// handleGetAwards returns recent award entries
func (r *Router) handleGetAwards(w http.ResponseWriter, req *http.Request) {
	awards, err := r.store.GetAwards(req.Context(), parseLimit(req, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, awards)
}

// handleGetLeaderboard returns all-time aggregated standings
func (r *Router) handleGetLeaderboard(w http.ResponseWriter, req *http.Request) {
	entries, err := r.store.Leaderboard(req.Context(), parseLimit(req, 25))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleMessagePlayer sends an in-game message to a player on one server
func (r *Router) handleMessagePlayer(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var body struct {
		PlayerID string `json:"player_id"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.PlayerID == "" || body.Message == "" {
		writeError(w, http.StatusBadRequest, "player_id and message are required")
		return
	}

	if err := r.manager.MessagePlayer(req.Context(), id, body.PlayerID, body.Message); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// handleHealth returns service health
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"time":       time.Now().UTC(),
		"ws_clients": r.wsHub.ClientCount(),
	})
}
