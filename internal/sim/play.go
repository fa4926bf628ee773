package sim

import (
	"errors"
	"fmt"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
)

// ErrUnfinished is returned when a game is still running after the action budget.
var ErrUnfinished = errors.New("game did not finish")

// Result captures the outcome of one simulated game.
type Result struct {
	Seed       int64  `json:"seed"`
	Won        bool   `json:"won"`
	Finished   bool   `json:"finished"`
	Turns      int    `json:"turns"`
	Cured      int    `json:"cured"`
	PanicLevel int    `json:"panic_level"`
	Actions    int    `json:"actions"`
	LossReason string `json:"loss_reason,omitempty"` // Disease name or "panic"
}

// Play runs one game from its first turn to the end.
func Play(rs rules.Ruleset, seed int64, s Strategy, maxActions int) (Result, error) {
	el := events.NewEventLog(fmt.Sprintf("sim-%d", seed), nil)
	e := engine.New(rs, dice.NewRandRoller(seed), engine.WithEventLog(el))
	e.ResetGame()

	res := Result{Seed: seed}
	st := e.State()
	for !st.Terminal() && res.Actions < maxActions {
		action, index := s.Next(st)
		if err := e.Dispatch(action, index); err != nil {
			return res, fmt.Errorf("seed %d: %w", seed, err)
		}
		res.Actions++
		st = e.State()
	}

	res.Finished = st.Terminal()
	res.Won = st.HasWon
	res.Turns = st.Turn
	res.Cured = st.CuredCount()
	res.PanicLevel = st.PanicLevel
	if lost := el.ByType(events.EventTypeGameLost); len(lost) > 0 {
		if p, ok := lost[0].Payload.(events.GameEndedPayload); ok {
			res.LossReason = p.Reason
		}
	}
	if !res.Finished {
		return res, fmt.Errorf("seed %d after %d actions: %w", seed, res.Actions, ErrUnfinished)
	}
	return res, nil
}
