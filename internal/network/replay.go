package network

import (
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
	"github.com/epidemicexpress/server/internal/infra/storage"
	"github.com/epidemicexpress/server/internal/platform/logger"
)

// ReplayHandler exposes the recorded history of games: the raw event log,
// a readable recap, and a replay check of the log against the live game.
type ReplayHandler struct {
	games  GameService
	logger *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(games GameService, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		games:  games,
		logger: log,
	}
}

// EventsResponse is the API response for a game's event log.
type EventsResponse struct {
	GameID      string             `json:"game_id"`
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// RecapResponse is the API response for a game recap.
type RecapResponse struct {
	GameID      string               `json:"game_id"`
	SinceTurn   int                  `json:"since_turn"`
	GeneratedAt string               `json:"generated_at"`
	Recap       []storage.RecapEvent `json:"recap"`
}

// ReplayResponse reports the state rebuilt from a game's event log.
type ReplayResponse struct {
	GameID   string           `json:"game_id"`
	Events   int              `json:"events"`
	Matches  bool             `json:"matches"` // Rebuilt state equals the live state
	Replayed engine.GameState `json:"replayed"`
}

// HandleEvents returns the event log of a game.
// GET /api/games/{id}/events?turn=N&type=TURN_STARTED
func (rh *ReplayHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	history, err := rh.games.History(r.Context(), id)
	if err != nil {
		writeGameError(w, rh.logger, id, err)
		return
	}

	turnStr := r.URL.Query().Get("turn")
	eventType := r.URL.Query().Get("type")
	turn, err := strconv.Atoi(turnStr)
	if turnStr != "" && err != nil {
		jsonError(w, "Invalid turn", http.StatusBadRequest)
		return
	}

	filtered := make([]events.GameEvent, 0, len(history))
	for _, e := range history {
		if turnStr != "" && e.Turn != turn {
			continue
		}
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		filtered = append(filtered, e)
	}

	filterDesc := ""
	if turnStr != "" {
		filterDesc = "Turn " + turnStr
	}
	if eventType != "" {
		if filterDesc != "" {
			filterDesc += ", "
		}
		filterDesc += eventType
	}

	jsonSuccess(w, EventsResponse{
		GameID:      id,
		TotalEvents: len(filtered),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	})
}

// HandleEventDetail returns one event of a game.
// GET /api/games/{id}/events/{eventID}
func (rh *ReplayHandler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	eventID := r.PathValue("eventID")
	history, err := rh.games.History(r.Context(), id)
	if err != nil {
		writeGameError(w, rh.logger, id, err)
		return
	}
	for _, e := range history {
		if e.ID == eventID {
			jsonSuccess(w, e)
			return
		}
	}
	jsonError(w, "Event not found", http.StatusNotFound)
}

// HandleRecap returns a readable account of a game.
// GET /api/games/{id}/recap?since_turn=N
func (rh *ReplayHandler) HandleRecap(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	since := 0
	if s := r.URL.Query().Get("since_turn"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, "Invalid since_turn", http.StatusBadRequest)
			return
		}
		since = n
	}

	history, err := rh.games.History(r.Context(), id)
	if err != nil {
		writeGameError(w, rh.logger, id, err)
		return
	}
	jsonSuccess(w, RecapResponse{
		GameID:      id,
		SinceTurn:   since,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Recap:       storage.Recap(history, since),
	})
}

// HandleReplay rebuilds a game from its event log and compares the result
// with the live game.
// GET /api/games/{id}/replay
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	history, err := rh.games.History(r.Context(), id)
	if err != nil {
		writeGameError(w, rh.logger, id, err)
		return
	}
	replayed, err := engine.Replay(history)
	if err != nil {
		rh.logger.Errorf("replay game %s: %v", id, err)
		jsonError(w, "Event log does not replay: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	live, err := rh.games.State(r.Context(), id)
	if err != nil {
		writeGameError(w, rh.logger, id, err)
		return
	}

	matches := reflect.DeepEqual(replayed, live)
	if !matches {
		rh.logger.Warnf("replay of game %s differs from the live game", id)
	}
	rh.logger.Event("GAME_REPLAYED", id, "Events:"+strconv.Itoa(len(history)))
	jsonSuccess(w, ReplayResponse{
		GameID:   id,
		Events:   len(history),
		Matches:  matches,
		Replayed: replayed,
	})
}

// RegisterRoutes sets up the replay API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/games/{id}/events", rh.HandleEvents)
	mux.HandleFunc("GET /api/games/{id}/events/{eventID}", rh.HandleEventDetail)
	mux.HandleFunc("GET /api/games/{id}/recap", rh.HandleRecap)
	mux.HandleFunc("GET /api/games/{id}/replay", rh.HandleReplay)
}
