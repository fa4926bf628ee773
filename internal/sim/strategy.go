// Package sim plays games without a client. It drives the engine with a
// Strategy and runs batches of seeded games on a worker pool to measure
// how rule variants and strategies fare.
package sim

import (
	"fmt"
	"sort"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/engine"
	"github.com/epidemicexpress/server/internal/events"
)

// Strategy picks the next engine action for a game in progress.
type Strategy interface {
	Name() string
	// Next returns the action to dispatch and, for toggle_save_die, the
	// die index. It is never called on a finished game.
	Next(st engine.GameState) (action string, index int)
}

// Hasty applies every treatment as it is first rolled.
type Hasty struct{}

func (Hasty) Name() string { return "hasty" }

func (Hasty) Next(st engine.GameState) (string, int) {
	if st.Phase == engine.PhaseInfection {
		return events.ActionApplyInfection, 0
	}
	return events.ActionApplyTreatment, 0
}

// Greedy keeps the dice of the uncured disease it rolled most of, breaking
// ties towards the most severe track, and re-rolls everything else except
// panics.
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (Greedy) Next(st engine.GameState) (string, int) {
	if st.Phase == engine.PhaseInfection {
		return events.ActionApplyInfection, 0
	}
	if st.RerollsRemaining > 0 {
		target := greedyTarget(st)
		for i, f := range st.TreatmentDice {
			if i >= len(st.SavedDice) {
				break
			}
			keep := f == target || f == dice.Panic
			if keep != st.SavedDice[i] && !st.LockedDice[i] {
				return events.ActionToggleSaveDie, i
			}
		}
	}
	return events.ActionConfirmTreatment, 0
}

func greedyTarget(st engine.GameState) dice.Face {
	counts := dice.CountFaces(st.TreatmentDice)
	target := dice.Face(-1)
	for _, d := range dice.Diseases() {
		if st.Diseases[d].Cured || counts[d] == 0 {
			continue
		}
		if target < 0 || counts[d] > counts[target] ||
			(counts[d] == counts[target] && st.Diseases[d].Level > st.Diseases[target].Level) {
			target = d
		}
	}
	return target
}

var strategies = map[string]Strategy{
	Hasty{}.Name():  Hasty{},
	Greedy{}.Name(): Greedy{},
}

// ByName returns the strategy with the given name.
func ByName(name string) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (want one of %v)", name, Names())
	}
	return s, nil
}

// Names lists the available strategies.
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
