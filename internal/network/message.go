package network

import (
	"time"

	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
)

// Outgoing message types.
const (
	MsgTypeState   = "STATE"
	MsgTypeCatalog = "CATALOG"
	MsgTypeError   = "ERROR"
)

// Incoming action types, shared by the WebSocket and the HTTP API.
const (
	ActionNewGame          = "NEW_GAME"
	ActionReset            = "RESET"
	ActionConfirmInfection = "CONFIRM_INFECTION"
	ActionToggleSave       = "TOGGLE_SAVE"
	ActionConfirmTreatment = "CONFIRM_TREATMENT"
)

// Message is sent from the server to a client.
type Message struct {
	Type      string              `json:"type"`
	GameID    string              `json:"game_id,omitempty"`
	State     *engine.GameState   `json:"state,omitempty"`
	Catalog   *engine.CatalogData `json:"catalog,omitempty"`
	Error     string              `json:"error,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

// PlayerAction represents an incoming command from a client.
type PlayerAction struct {
	Type  string `json:"type"`
	Index int    `json:"index"` // Die slot for TOGGLE_SAVE
}

// engineAction maps a client action onto the engine operation it runs.
// NEW_GAME has no engine operation and is handled by the caller.
func engineAction(actionType string) (string, bool) {
	switch actionType {
	case ActionReset:
		return events.ActionResetGame, true
	case ActionConfirmInfection:
		return events.ActionApplyInfection, true
	case ActionToggleSave:
		return events.ActionToggleSaveDie, true
	case ActionConfirmTreatment:
		return events.ActionConfirmTreatment, true
	default:
		return "", false
	}
}

func stateMessage(gameID string, state engine.GameState) Message {
	return Message{Type: MsgTypeState, GameID: gameID, State: &state, Timestamp: time.Now().Unix()}
}

func catalogMessage() Message {
	catalog := engine.Catalog()
	return Message{Type: MsgTypeCatalog, Catalog: &catalog, Timestamp: time.Now().Unix()}
}

func errorMessage(gameID, text string) Message {
	return Message{Type: MsgTypeError, GameID: gameID, Error: text, Timestamp: time.Now().Unix()}
}
