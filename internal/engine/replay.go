package engine

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/events"
)

var (
	// ErrUnknownAction is returned by Dispatch for an action name it does not know.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNoGameCreated is returned by Replay when the log has no GAME_CREATED event.
	ErrNoGameCreated = errors.New("event log has no GAME_CREATED event")
	// ErrReplayMismatch is returned by Replay when the recorded draws do not
	// reproduce the recorded game.
	ErrReplayMismatch = errors.New("replay does not match recorded game")
)

// Dispatch runs the operation named by action. index is only read by
// toggle_save_die.
func (e *Engine) Dispatch(action string, index int) error {
	switch action {
	case events.ActionResetGame:
		e.ResetGame()
	case events.ActionStartTurn:
		e.StartTurn()
	case events.ActionApplyInfection:
		e.ApplyInfection()
	case events.ActionRollTreatment:
		e.RollTreatment()
	case events.ActionToggleSaveDie:
		e.ToggleSaveDie(index)
	case events.ActionConfirmTreatment:
		e.ConfirmTreatment()
	case events.ActionApplyTreatment:
		e.ApplyTreatment()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return nil
}

type recording struct {
	created bool
	game    events.GameCreatedPayload
	draws   []int
	actions []events.PlayerActionPayload
}

func scan(history []events.GameEvent) (recording, error) {
	var r recording
	for _, ev := range history {
		switch p := ev.Payload.(type) {
		case events.GameCreatedPayload:
			if r.created {
				continue
			}
			r.created = true
			r.game = p
		case events.TurnStartedPayload:
			r.draws = append(r.draws, int(p.Role))
			r.draws = appendFaces(r.draws, p.InfectionDice)
		case events.TreatmentRolledPayload:
			r.draws = appendFaces(r.draws, p.Faces)
		case events.PlayerActionPayload:
			r.actions = append(r.actions, p)
		}
	}
	if !r.created {
		return recording{}, ErrNoGameCreated
	}
	return r, nil
}

func (r recording) run(e *Engine) error {
	for _, a := range r.actions {
		if err := e.Dispatch(a.Action, a.Index); err != nil {
			return fmt.Errorf("replay action: %w", err)
		}
	}
	return nil
}

// Replay rebuilds a game from its event history. The recorded draws are fed
// back through a dice.Sequence while the recorded player actions are run
// again under the recorded rules.
func Replay(history []events.GameEvent) (GameState, error) {
	r, err := scan(history)
	if err != nil {
		return GameState{}, err
	}

	seq := dice.NewSequence(r.draws...)
	e := New(r.game.Ruleset, seq)
	if err := r.run(e); err != nil {
		return GameState{}, err
	}
	if err := seq.Err(); err != nil {
		return GameState{}, fmt.Errorf("%w: %v", ErrReplayMismatch, err)
	}
	if n := seq.Remaining(); n > 0 {
		return GameState{}, fmt.Errorf("%w: %d recorded draws unused", ErrReplayMismatch, n)
	}
	return e.State(), nil
}

// Restore brings a recorded game back to life on roller, which must be seeded
// the way the original game's roller was. The recorded actions are run again
// before opts are applied, so an event log passed through WithEventLog only
// receives what happens after the restore.
func Restore(history []events.GameEvent, roller dice.Roller, opts ...Option) (*Engine, error) {
	r, err := scan(history)
	if err != nil {
		return nil, err
	}
	want, err := Replay(history)
	if err != nil {
		return nil, err
	}

	e := New(r.game.Ruleset, roller)
	if err := r.run(e); err != nil {
		return nil, err
	}
	if !reflect.DeepEqual(e.state, want) {
		return nil, fmt.Errorf("%w: roller does not reproduce the recorded draws", ErrReplayMismatch)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func appendFaces(draws []int, faces []dice.Face) []int {
	for _, f := range faces {
		draws = append(draws, int(f))
	}
	return draws
}
