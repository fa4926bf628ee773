package events

import (
	"encoding/json"
	"fmt"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/role"
	"github.com/epidemicexpress/server/internal/domain/rules"
)

// Action names recorded in PlayerActionPayload.
const (
	ActionResetGame        = "reset_game"
	ActionStartTurn        = "start_turn"
	ActionApplyInfection   = "apply_infection"
	ActionRollTreatment    = "roll_treatment"
	ActionToggleSaveDie    = "toggle_save_die"
	ActionConfirmTreatment = "confirm_treatment"
	ActionApplyTreatment   = "apply_treatment"
)

// GameCreatedPayload records the rules a game is played under.
type GameCreatedPayload struct {
	Ruleset rules.Ruleset `json:"ruleset"`
}

// PlayerActionPayload records an operation invoked on the engine.
type PlayerActionPayload struct {
	Action string `json:"action"`
	Index  int    `json:"index,omitempty"` // die slot for toggle_save_die
}

// TurnStartedPayload records the role and infection dice drawn for a turn.
type TurnStartedPayload struct {
	Role          role.Role   `json:"role"`
	Rerolls       int         `json:"rerolls"`
	InfectionRate int         `json:"infection_rate"`
	InfectionDice []dice.Face `json:"infection_dice"`
}

// InfectionAppliedPayload records the outcome of the infection phase.
type InfectionAppliedPayload struct {
	Increased    []dice.Face `json:"increased"`
	MedicBlocked *dice.Face  `json:"medic_blocked,omitempty"`
	PanicDice    int         `json:"panic_dice"`
	PanicRaised  bool        `json:"panic_raised"`
	PanicLevel   int         `json:"panic_level"`
}

// TreatmentRolledPayload records the faces drawn for the re-rolled slots.
type TreatmentRolledPayload struct {
	Slots        []int       `json:"slots"`
	Faces        []dice.Face `json:"faces"`
	Locked       []int       `json:"locked,omitempty"`
	PanicPenalty int         `json:"panic_penalty"`
	PanicLevel   int         `json:"panic_level"`
}

// DieToggledPayload records a change to a treatment die's saved flag.
type DieToggledPayload struct {
	Index    int  `json:"index"`
	Saved    bool `json:"saved"`
	Rejected bool `json:"rejected,omitempty"`
}

// LevelChange is a disease level reduced by treatment.
type LevelChange struct {
	Disease dice.Face `json:"disease"`
	From    int       `json:"from"`
	To      int       `json:"to"`
}

// TreatmentAppliedPayload records the outcome of the treatment phase.
type TreatmentAppliedPayload struct {
	Dice         []dice.Face   `json:"dice"`
	PanicReduced bool          `json:"panic_reduced"`
	PanicLevel   int           `json:"panic_level"`
	Cured        []dice.Face   `json:"cured,omitempty"`
	Reduced      []LevelChange `json:"reduced,omitempty"`
}

// DiseaseCuredPayload records a cure and the infection rate that follows it.
type DiseaseCuredPayload struct {
	Disease       dice.Face `json:"disease"`
	InfectionRate int       `json:"infection_rate"`
}

// GameEndedPayload records a terminal outcome.
type GameEndedPayload struct {
	Reason string `json:"reason"`
	Turns  int    `json:"turns"`
}

// DecodePayload restores the typed payload of a stored event.
func DecodePayload(t EventType, raw json.RawMessage) (interface{}, error) {
	var target interface{}
	switch t {
	case EventTypeGameCreated:
		target = &GameCreatedPayload{}
	case EventTypePlayerAction:
		target = &PlayerActionPayload{}
	case EventTypeTurnStarted:
		target = &TurnStartedPayload{}
	case EventTypeInfectionApplied:
		target = &InfectionAppliedPayload{}
	case EventTypeTreatmentRolled:
		target = &TreatmentRolledPayload{}
	case EventTypeDieToggled:
		target = &DieToggledPayload{}
	case EventTypeTreatmentApplied:
		target = &TreatmentAppliedPayload{}
	case EventTypeDiseaseCured:
		target = &DiseaseCuredPayload{}
	case EventTypeGameWon, EventTypeGameLost:
		target = &GameEndedPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(target), nil
}

// deref returns the payload by value, the shape the engine appends.
func deref(p interface{}) interface{} {
	switch v := p.(type) {
	case *GameCreatedPayload:
		return *v
	case *PlayerActionPayload:
		return *v
	case *TurnStartedPayload:
		return *v
	case *InfectionAppliedPayload:
		return *v
	case *TreatmentRolledPayload:
		return *v
	case *DieToggledPayload:
		return *v
	case *TreatmentAppliedPayload:
		return *v
	case *DiseaseCuredPayload:
		return *v
	case *GameEndedPayload:
		return *v
	}
	return p
}
