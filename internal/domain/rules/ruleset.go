// Package rules contains the pure calculation logic for game mechanics.
// This package is PURE and must NOT import any infrastructure packages.
//
// Every role-specific rule is a function keyed on role.Role and parameterised
// by a Ruleset, so each role can be tested on its own.
package rules

import (
	"errors"
	"fmt"
)

// TreatmentDiceCount is the fixed number of treatment dice. Saved and locked
// markers are sized to it.
const TreatmentDiceCount = 5

// Ruleset holds the tunable constants and the optional rule variants.
// Default returns the canonical rule set.
type Ruleset struct {
	LosingLevel          int `json:"losing_level" env:"LOSING_LEVEL"`
	InitialInfectionRate int `json:"initial_infection_rate" env:"INITIAL_INFECTION_RATE"`
	MaxInfectionRate     int `json:"max_infection_rate" env:"MAX_INFECTION_RATE"`
	RerollsAllowed       int `json:"rerolls_allowed" env:"REROLLS_ALLOWED"`
	TreatmentDice        int `json:"treatment_dice" env:"TREATMENT_DICE"`

	DiceToIncreasePanic int `json:"dice_to_increase_panic" env:"DICE_TO_INCREASE_PANIC"`
	DiceToReducePanic   int `json:"dice_to_reduce_panic" env:"DICE_TO_REDUCE_PANIC"`
	PRDiceToReducePanic int `json:"pr_dice_to_reduce_panic" env:"PR_DICE_TO_REDUCE_PANIC"`
	DiceToCure          int `json:"dice_to_cure" env:"DICE_TO_CURE"`
	PRDiceToCure        int `json:"pr_dice_to_cure" env:"PR_DICE_TO_CURE"`

	ScientistFullHouse                 bool `json:"scientist_full_house" env:"SCIENTIST_FULL_HOUSE"`
	PenaltyForRerollingPanics          bool `json:"penalty_for_rerolling_panics" env:"PENALTY_FOR_REROLLING_PANICS"`
	LockPenaltyPanics                  bool `json:"lock_penalty_panics" env:"LOCK_PENALTY_PANICS"`
	EpidemiologistReducesInfectionDice bool `json:"epidemiologist_reduces_infection_dice" env:"EPIDEMIOLOGIST_REDUCES_INFECTION_DICE"`
	PRExpertAvoidsPanicIncrease        bool `json:"pr_expert_avoids_panic_increase" env:"PR_EXPERT_AVOIDS_PANIC_INCREASE"`
	BioterroristIncreasesPanic         bool `json:"bioterrorist_increases_panic" env:"BIOTERRORIST_INCREASES_PANIC"`
	BioterroristIncreasesDiseases      bool `json:"bioterrorist_increases_diseases" env:"BIOTERRORIST_INCREASES_DISEASES"`
	ReducePanicOnCure                  bool `json:"reduce_panic_on_cure" env:"REDUCE_PANIC_ON_CURE"`
	ReduceOthersWhenReducingPanic      bool `json:"reduce_others_when_reducing_panic" env:"REDUCE_OTHERS_WHEN_REDUCING_PANIC"`
}

// Default returns the canonical rule set.
func Default() Ruleset {
	return Ruleset{
		LosingLevel:          6,
		InitialInfectionRate: 3,
		MaxInfectionRate:     7,
		RerollsAllowed:       2,
		TreatmentDice:        TreatmentDiceCount,

		DiceToIncreasePanic: 2,
		DiceToReducePanic:   4,
		PRDiceToReducePanic: 3,
		DiceToCure:          4,
		PRDiceToCure:        3,

		ScientistFullHouse:                 true,
		PenaltyForRerollingPanics:          true,
		LockPenaltyPanics:                  true,
		EpidemiologistReducesInfectionDice: true,
		PRExpertAvoidsPanicIncrease:        false,
		BioterroristIncreasesPanic:         false,
		BioterroristIncreasesDiseases:      true,
		ReducePanicOnCure:                  false,
		ReduceOthersWhenReducingPanic:      true,
	}
}

// Classic returns the variant played by the first browser release: penalty
// panics are auto-saved but may be released again, and the Epidemiologist
// rolls the full infection rate.
func Classic() Ruleset {
	rs := Default()
	rs.LockPenaltyPanics = false
	rs.EpidemiologistReducesInfectionDice = false
	return rs
}

// ErrInvalidRuleset wraps every validation failure.
var ErrInvalidRuleset = errors.New("invalid ruleset")

// Validate checks that the constants describe a playable game.
func (rs Ruleset) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"losing_level", rs.LosingLevel},
		{"initial_infection_rate", rs.InitialInfectionRate},
		{"max_infection_rate", rs.MaxInfectionRate},
		{"dice_to_increase_panic", rs.DiceToIncreasePanic},
		{"dice_to_reduce_panic", rs.DiceToReducePanic},
		{"pr_dice_to_reduce_panic", rs.PRDiceToReducePanic},
		{"dice_to_cure", rs.DiceToCure},
		{"pr_dice_to_cure", rs.PRDiceToCure},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidRuleset, p.name, p.value)
		}
	}
	if rs.RerollsAllowed < 0 {
		return fmt.Errorf("%w: rerolls_allowed must not be negative, got %d", ErrInvalidRuleset, rs.RerollsAllowed)
	}
	if rs.MaxInfectionRate < rs.InitialInfectionRate {
		return fmt.Errorf("%w: max_infection_rate %d below initial_infection_rate %d",
			ErrInvalidRuleset, rs.MaxInfectionRate, rs.InitialInfectionRate)
	}
	if rs.TreatmentDice != TreatmentDiceCount {
		return fmt.Errorf("%w: treatment_dice must be %d, got %d", ErrInvalidRuleset, TreatmentDiceCount, rs.TreatmentDice)
	}
	return nil
}
