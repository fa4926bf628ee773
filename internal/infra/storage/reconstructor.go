// Package storage - reconstructor.go
// Rebuilds games from the event log: state = f(events).
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
)

// Reconstructor rebuilds game state from the event log.
// This is used for:
// 1. Recap - a readable account of a finished or abandoned game
// 2. Restoring a game that is no longer held in memory
// 3. Auditing and debugging
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// Impact classifies how an event moved the game.
type Impact string

const (
	ImpactPositive Impact = "POSITIVE"
	ImpactNegative Impact = "NEGATIVE"
	ImpactNeutral  Impact = "NEUTRAL"
)

// RecapEvent is a simplified event for the recap screen.
type RecapEvent struct {
	Seq       int    `json:"seq"`
	Turn      int    `json:"turn"`
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Impact    Impact `json:"impact"`
}

// RebuildGameState replays a stored game up to its last recorded event.
func (r *Reconstructor) RebuildGameState(ctx context.Context, gameID string) (engine.GameState, error) {
	history, err := LoadHistory(ctx, r.eventRepo, gameID)
	if err != nil {
		return engine.GameState{}, err
	}
	state, err := engine.Replay(history)
	if err != nil {
		return engine.GameState{}, fmt.Errorf("failed to replay game %s: %w", gameID, err)
	}
	return state, nil
}

// GenerateRecap summarises a stored game from the given turn onwards.
func (r *Reconstructor) GenerateRecap(ctx context.Context, gameID string, sinceTurn int) ([]RecapEvent, error) {
	history, err := LoadHistory(ctx, r.eventRepo, gameID)
	if err != nil {
		return nil, err
	}
	return Recap(history, sinceTurn), nil
}

// Recap summarises a game history from the given turn onwards. Player
// actions are left out; their outcomes carry the story.
func Recap(history []events.GameEvent, sinceTurn int) []RecapEvent {
	recap := make([]RecapEvent, 0, len(history))
	for _, e := range history {
		if e.Turn < sinceTurn || e.Type == events.EventTypePlayerAction {
			continue
		}
		recap = append(recap, RecapEvent{
			Seq:       e.Seq,
			Turn:      e.Turn,
			Timestamp: e.Timestamp.Format("15:04:05"),
			EventType: string(e.Type),
			Summary:   summarizeEvent(e),
			Impact:    determineImpact(e),
		})
	}
	return recap
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e events.GameEvent) string {
	switch p := e.Payload.(type) {
	case events.GameCreatedPayload:
		return fmt.Sprintf("New game: %d infection dice, losing level %d", p.Ruleset.InitialInfectionRate, p.Ruleset.LosingLevel)
	case events.TurnStartedPayload:
		return fmt.Sprintf("Turn %d: you are the %s, %d infection dice rolled", e.Turn, p.Role.Name(), len(p.InfectionDice))
	case events.InfectionAppliedPayload:
		var parts []string
		if len(p.Increased) > 0 {
			parts = append(parts, "infection spread to "+faceNames(p.Increased))
		}
		if p.MedicBlocked != nil {
			parts = append(parts, "the Medic contained "+p.MedicBlocked.Name())
		}
		if p.PanicRaised {
			parts = append(parts, fmt.Sprintf("panic rose to %d", p.PanicLevel))
		}
		if len(parts) == 0 {
			return "The infection did not spread"
		}
		return capitalize(strings.Join(parts, "; "))
	case events.TreatmentRolledPayload:
		s := "Treatment roll: " + faceNames(p.Faces)
		if p.PanicPenalty > 0 {
			s += fmt.Sprintf(" (re-rolled panic cost %d, panic at %d)", p.PanicPenalty, p.PanicLevel)
		}
		return s
	case events.DieToggledPayload:
		switch {
		case p.Rejected:
			return fmt.Sprintf("Die %d is locked", p.Index+1)
		case p.Saved:
			return fmt.Sprintf("Kept die %d", p.Index+1)
		default:
			return fmt.Sprintf("Released die %d", p.Index+1)
		}
	case events.TreatmentAppliedPayload:
		var parts []string
		if p.PanicReduced {
			parts = append(parts, fmt.Sprintf("panic fell to %d", p.PanicLevel))
		}
		for _, c := range p.Reduced {
			parts = append(parts, fmt.Sprintf("%s %d→%d", c.Disease.Name(), c.From, c.To))
		}
		if len(parts) == 0 && len(p.Cured) == 0 {
			return "The treatment had no effect"
		}
		if len(parts) == 0 {
			return "Treatment applied"
		}
		return "Treatment applied: " + strings.Join(parts, ", ")
	case events.DiseaseCuredPayload:
		return fmt.Sprintf("Cured %s! Infection rate is now %d", p.Disease.Name(), p.InfectionRate)
	case events.GameEndedPayload:
		if e.Type == events.EventTypeGameWon {
			return fmt.Sprintf("Every disease cured after %d turns", p.Turns)
		}
		return fmt.Sprintf("Game over: %s reached the losing level after %d turns", p.Reason, p.Turns)
	default:
		return "Something happened in the outbreak."
	}
}

// determineImpact classifies the event impact.
func determineImpact(e events.GameEvent) Impact {
	switch p := e.Payload.(type) {
	case events.InfectionAppliedPayload:
		if len(p.Increased) > 0 || p.PanicRaised {
			return ImpactNegative
		}
	case events.TreatmentRolledPayload:
		if p.PanicPenalty > 0 {
			return ImpactNegative
		}
	case events.TreatmentAppliedPayload:
		if p.PanicReduced || len(p.Reduced) > 0 || len(p.Cured) > 0 {
			return ImpactPositive
		}
	}
	switch e.Type {
	case events.EventTypeDiseaseCured, events.EventTypeGameWon:
		return ImpactPositive
	case events.EventTypeGameLost:
		return ImpactNegative
	}
	return ImpactNeutral
}

func faceNames(faces []dice.Face) string {
	names := make([]string, len(faces))
	for i, f := range faces {
		names[i] = f.Name()
	}
	return strings.Join(names, ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
