// Package network serves games over WebSocket and a JSON HTTP API.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/infra/storage"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/platform/metrics"
	"github.com/epidemicexpress/server/internal/platform/optimization"
	"github.com/epidemicexpress/server/internal/session"
)

// GameAPI handles the HTTP and WebSocket endpoints for playing games.
type GameAPI struct {
	games     GameService
	summaries storage.GameRepository // nil when running without a database
	hub       *Hub
	tuning    *optimization.Config
	metrics   *metrics.Collector
	logger    *logger.Logger
	upgrader  websocket.Upgrader
}

// NewGameAPI creates the game endpoints. summaries may be nil.
func NewGameAPI(games GameService, summaries storage.GameRepository, hub *Hub, tuning *optimization.Config, m *metrics.Collector, log *logger.Logger) *GameAPI {
	return &GameAPI{
		games:     games,
		summaries: summaries,
		hub:       hub,
		tuning:    tuning,
		metrics:   m,
		logger:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Browser clients are served from another origin
			},
		},
	}
}

// GameResponse carries the state of one game.
type GameResponse struct {
	GameID string           `json:"game_id"`
	State  engine.GameState `json:"state"`
}

// HandleCreate starts a new game.
// POST /api/games
func (a *GameAPI) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, state, err := a.games.Create(r.Context())
	if err != nil {
		a.logger.Errorf("create game: %v", err)
		jsonError(w, "Could not create game", http.StatusServiceUnavailable)
		return
	}
	a.logger.Event("GAME_CREATED", id, "via HTTP")
	jsonResponse(w, http.StatusCreated, GameResponse{GameID: id, State: state})
}

// HandleState returns the current state of a game.
// GET /api/games/{id}
func (a *GameAPI) HandleState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := a.games.State(r.Context(), id)
	if err != nil {
		a.gameError(w, id, err)
		return
	}
	jsonSuccess(w, GameResponse{GameID: id, State: state})
}

// HandleAction applies a player action to a game.
// POST /api/games/{id}/actions
func (a *GameAPI) HandleAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req PlayerAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	name, ok := engineAction(req.Type)
	if !ok {
		jsonError(w, "Unknown action "+strconv.Quote(req.Type), http.StatusBadRequest)
		return
	}

	state, err := a.games.Apply(r.Context(), id, name, req.Index)
	if err != nil {
		a.gameError(w, id, err)
		return
	}
	jsonSuccess(w, GameResponse{GameID: id, State: state})
}

// HandleList returns the most recently played games.
// GET /api/games?limit=N
func (a *GameAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	if a.summaries == nil {
		jsonError(w, "Game history is not stored", http.StatusNotImplemented)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := a.summaries.ListRecent(r.Context(), limit)
	if err != nil {
		a.logger.Errorf("list games: %v", err)
		jsonError(w, "Could not list games", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []storage.GameSummary{}
	}
	jsonSuccess(w, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

// HandleStats returns win/loss statistics over every stored game.
// GET /api/stats
func (a *GameAPI) HandleStats(w http.ResponseWriter, r *http.Request) {
	if a.summaries == nil {
		jsonError(w, "Game history is not stored", http.StatusNotImplemented)
		return
	}
	stats, err := a.summaries.Stats(r.Context())
	if err != nil {
		a.logger.Errorf("game stats: %v", err)
		jsonError(w, "Could not compute stats", http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// HandleCatalog returns the role and die face lookups.
// GET /api/catalog
func (a *GameAPI) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	jsonSuccess(w, engine.Catalog())
}

// HandleHealth reports liveness.
// GET /healthz
func (a *GameAPI) HandleHealth(w http.ResponseWriter, r *http.Request) {
	jsonSuccess(w, map[string]interface{}{
		"status":  "ok",
		"profile": a.tuning.Name,
	})
}

// HandleTuning analyzes the live metrics and suggests a tuned profile.
// GET /api/tuning
func (a *GameAPI) HandleTuning(w http.ResponseWriter, r *http.Request) {
	rec := optimization.Analyze(a.metrics.Snapshot())
	jsonSuccess(w, map[string]interface{}{
		"profile":         a.tuning,
		"recommendations": rec,
		"suggested":       optimization.ApplyRecommendations(a.tuning, rec),
	})
}

// HandleWebSocket upgrades the connection and attaches the client to the
// game named by ?game=, or to a new game.
// GET /ws
func (a *GameAPI) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warnf("Failed to upgrade websocket connection: %v", err)
		a.metrics.RecordWSError()
		return
	}
	a.metrics.RecordWSConnection(1)

	client := NewClient(a.hub, a.games, conn, a.tuning.ClientSendBuffer, a.tuning.MaxMessagesPerSecond)
	client.Start(r.URL.Query().Get("game"))

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

// RegisterRoutes sets up the game API routes.
func (a *GameAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games", a.HandleCreate)
	mux.HandleFunc("GET /api/games", a.HandleList)
	mux.HandleFunc("GET /api/games/{id}", a.HandleState)
	mux.HandleFunc("POST /api/games/{id}/actions", a.HandleAction)
	mux.HandleFunc("GET /api/stats", a.HandleStats)
	mux.HandleFunc("GET /api/catalog", a.HandleCatalog)
	mux.HandleFunc("GET /api/tuning", a.HandleTuning)
	mux.HandleFunc("GET /healthz", a.HandleHealth)
	mux.HandleFunc("GET /ws", a.HandleWebSocket)
	mux.HandleFunc("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /metrics/prom", a.metrics.PrometheusHandler())
}

func (a *GameAPI) gameError(w http.ResponseWriter, gameID string, err error) {
	writeGameError(w, a.logger, gameID, err)
}

func writeGameError(w http.ResponseWriter, log *logger.Logger, gameID string, err error) {
	switch {
	case errors.Is(err, session.ErrGameNotFound):
		jsonError(w, "Game not found", http.StatusNotFound)
	case errors.Is(err, session.ErrClosed):
		jsonError(w, "Server is shutting down", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		jsonError(w, "Request timed out", http.StatusGatewayTimeout)
	default:
		log.Errorf("game %s: %v", gameID, err)
		jsonError(w, "Internal error", http.StatusInternalServerError)
	}
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	jsonResponse(w, http.StatusOK, data)
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
