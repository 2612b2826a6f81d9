// Package api serves the tile-store daemon's HTTP surface: tile reads,
// grouped stroke appends, ink accounts, cleanup requests and websocket tile
// subscriptions.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"inkwash/pkg/config"
	"inkwash/pkg/logger"
	"inkwash/pkg/models"
	"inkwash/pkg/store"
	"inkwash/pkg/telemetry"
	"inkwash/pkg/tilemap"
	"inkwash/pkg/utils"
	"inkwash/pkg/validation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server bundles the route handlers over one store.
type Server struct {
	st       *store.Store
	hub      *hub
	fan      *fanout
	limiters *limiterPool
}

// saveRequest is the body of POST /v1/strokes.
type saveRequest struct {
	User     string                           `json:"user"`
	TotalInk float64                          `json:"totalInk"`
	Tiles    map[string][]models.StrokeRecord `json:"tiles"`
}

type cleanupRequest struct {
	MaxAgeMs int64 `json:"maxAgeMs"`
}

// NewServer wires the API over st. ctx bounds the background fanout bridge.
func NewServer(ctx context.Context, st *store.Store, cfg *config.Config) (*Server, error) {
	s := &Server{
		st:  st,
		hub: newHub(),
		limiters: &limiterPool{
			rps:   cfg.Security.RateLimit.RPS,
			burst: cfg.Security.RateLimit.Burst,
		},
	}
	fan, err := newFanout(ctx, cfg.Fanout.RedisAddr, cfg.Fanout.ChannelPrefix, s.pushTile)
	if err != nil {
		return nil, err
	}
	s.fan = fan
	return s, nil
}

// Router returns the daemon's route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)
	r.HandleFunc("/v1/tiles/{key}", s.handleGetTile).Methods(http.MethodGet)
	r.HandleFunc("/v1/tiles/{key}/cleanup", s.handleCleanup).Methods(http.MethodPost)
	r.HandleFunc("/v1/strokes", s.handleSaveStrokes).Methods(http.MethodPost)
	r.HandleFunc("/v1/ink/{user}", s.handleGetAccount).Methods(http.MethodGet)
	r.HandleFunc("/v1/subscribe", s.handleSubscribe).Methods(http.MethodGet)
	return r
}

func (s *Server) handleGetTile(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	id, err := tilemap.ParseKey(key)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "malformed tile key")
		return
	}
	t, err := s.st.GetTile(id)
	if err != nil {
		logger.Error("get_tile_failed", "tile", key, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "tile read failed")
		return
	}
	telemetry.TileLoadsTotal.Inc()
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

func (s *Server) handleSaveStrokes(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.User == "" {
		utils.JSONError(w, http.StatusBadRequest, "missing user")
		return
	}
	if !s.limiters.Allow(req.User) {
		utils.JSONError(w, http.StatusTooManyRequests, "rate limited")
		return
	}
	if err := validation.ValidateSave(req.Tiles, req.TotalInk); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	changed, err := s.st.AppendStrokes(req.Tiles, req.User, req.TotalInk)
	if err != nil {
		logger.Error("append_strokes_failed", "user", req.User, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "append failed")
		return
	}
	for _, key := range changed {
		s.fan.notify(r.Context(), key)
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"status": "ok", "tiles": len(changed)})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	country := r.URL.Query().Get("country")
	a, err := s.st.GetAccount(user, country)
	if err != nil {
		logger.Error("get_account_failed", "user", user, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "account read failed")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, a)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	id, err := tilemap.ParseKey(key)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "malformed tile key")
		return
	}
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.MaxAgeMs <= 0 {
		utils.JSONError(w, http.StatusBadRequest, "maxAgeMs must be positive")
		return
	}
	removed, err := s.st.CleanupTile(id, time.Duration(req.MaxAgeMs)*time.Millisecond)
	if err != nil {
		logger.Error("cleanup_tile_failed", "tile", key, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	if removed > 0 {
		s.fan.notify(r.Context(), key)
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"removed": removed})
}

// handleSubscribe upgrades to a websocket and streams the full tile state:
// once on attach, then on every change.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("tile")
	id, err := tilemap.ParseKey(key)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "malformed tile key")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, 8)}
	s.hub.add(key, sub)
	go sub.writeLoop()

	// initial full state so the client does not wait for the first change
	if t, err := s.st.GetTile(id); err == nil {
		if payload, err := json.Marshal(t); err == nil {
			select {
			case sub.send <- payload:
			default:
			}
		}
	}

	// reads are only used to detect disconnect
	go func() {
		defer s.hub.remove(key, sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// pushTile loads the current tile state and broadcasts it to local
// websocket subscribers. Invoked directly or via the Redis bridge.
func (s *Server) pushTile(tileKey string) {
	id, err := tilemap.ParseKey(tileKey)
	if err != nil {
		telemetry.MalformedTilesTotal.Inc()
		logger.Error("malformed_tile_key_skipped", "key", tileKey, "error", err)
		return
	}
	t, err := s.st.GetTile(id)
	if err != nil {
		logger.Warn("push_tile_load_failed", "tile", tileKey, "error", err)
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	s.hub.broadcast(tileKey, payload)
}
