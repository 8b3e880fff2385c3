package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// AdminAPI serves the operator HTTP endpoints. Every read and write goes
// through the world loop.
type AdminAPI struct {
	world *World
	token string
	log   *zap.SugaredLogger
}

// NewAdminAPI protects /admin/config with token when it is non-empty.
func NewAdminAPI(w *World, token string, log *zap.SugaredLogger) *AdminAPI {
	return &AdminAPI{world: w, token: token, log: log}
}

func (a *AdminAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/config", a.handleConfig)
	mux.HandleFunc("/rooms", a.handleRooms)
	mux.HandleFunc("/players/online", a.handleOnline)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// handleConfig reads (GET) or partially updates (POST, JSON body) the live tunables.
func (a *AdminAPI) handleConfig(rw http.ResponseWriter, r *http.Request) {
	if a.token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Admin-Token")), []byte(a.token)) != 1 {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		var cur Tunables
		if !a.world.Call(func(w *World) { cur = w.cfg.tunables() }) {
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, cur)
	case http.MethodPost:
		var body Tunables
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, "invalid json", http.StatusBadRequest)
			return
		}
		var cur Tunables
		if !a.world.Call(func(w *World) { cur = w.Reconfigure(body) }) {
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}
		a.log.Infow("config updated", "config", cur)
		writeJSON(rw, http.StatusOK, cur)
	default:
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *AdminAPI) handleRooms(rw http.ResponseWriter, r *http.Request) {
	var rooms []Room
	if !a.world.Call(func(w *World) { rooms = w.rooms.OccupancySnapshot() }) {
		http.Error(rw, "shutting down", http.StatusServiceUnavailable)
		return
	}
	writeJSON(rw, http.StatusOK, occupancyUpdate{Rooms: rooms})
}

func (a *AdminAPI) handleOnline(rw http.ResponseWriter, r *http.Request) {
	var names []string
	if !a.world.Call(func(w *World) { names = w.registry.Usernames() }) {
		http.Error(rw, "shutting down", http.StatusServiceUnavailable)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"count": len(names), "players": names})
}

// Reconfigure merges t into the live config and retunes every player's flood
// gates. Must run on the loop.
func (w *World) Reconfigure(t Tunables) Tunables {
	w.cfg.apply(t)
	now := w.now()
	for _, id := range w.registry.IDs() {
		p, _ := w.registry.Get(id)
		p.retune(w.cfg, now)
	}
	return w.cfg.tunables()
}
