package rules

import (
	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/role"
)

// DiseaseLevel is the severity of one disease track. A cured track keeps its
// last level for display but is never changed again.
type DiseaseLevel struct {
	Level int  `json:"level"`
	Cured bool `json:"cured"`
}

// Levels holds the five disease tracks, indexed by dice.Face.
type Levels [dice.DiseaseCount]DiseaseLevel

// AllCured reports whether every disease has been cured.
func (l Levels) AllCured() bool {
	for _, d := range l {
		if !d.Cured {
			return false
		}
	}
	return true
}

// RerollsAllowed is the treatment re-roll allowance for the turn.
func RerollsAllowed(rs Ruleset, r role.Role) int {
	if r == role.Researcher {
		return rs.RerollsAllowed + 1
	}
	return rs.RerollsAllowed
}

// InfectionDiceCount is the number of infection dice rolled at the given rate.
func InfectionDiceCount(rs Ruleset, r role.Role, rate int) int {
	n := rate
	if r == role.Epidemiologist && rs.EpidemiologistReducesInfectionDice {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

// InfectionPlan is the outcome of an infection roll before it is applied.
type InfectionPlan struct {
	// Marked is set for every non-cured disease shown on the dice.
	Marked [dice.DiseaseCount]bool
	// Increase is set for every disease whose level goes up.
	Increase [dice.DiseaseCount]bool
	// Blocked is the disease the Medic kept from increasing; valid when HasBlocked.
	Blocked    dice.Face
	HasBlocked bool
	PanicDice  int
	RaisePanic bool
}

// PlanInfection resolves the infection dice against the current levels.
//
// The Medic cancels the increase of the marked disease with the strictly
// highest level, ties going to the first one met in dice order. The
// Bio-terrorist raises every non-cured disease and, unless configured
// otherwise, keeps panic from rising.
func PlanInfection(rs Ruleset, r role.Role, levels Levels, rolled []dice.Face) InfectionPlan {
	var plan InfectionPlan
	highest := -1
	for _, f := range rolled {
		if f == dice.Panic {
			plan.PanicDice++
			continue
		}
		if !f.IsDisease() || levels[f].Cured {
			continue
		}
		if levels[f].Level > highest {
			highest = levels[f].Level
			plan.Blocked = f
			plan.HasBlocked = true
		}
		plan.Marked[f] = true
	}

	plan.Increase = plan.Marked
	switch {
	case r == role.Bioterrorist && rs.BioterroristIncreasesDiseases:
		plan.HasBlocked = false
		for i := range plan.Increase {
			plan.Increase[i] = !levels[i].Cured
		}
	case r == role.Medic && plan.HasBlocked:
		plan.Increase[plan.Blocked] = false
	default:
		plan.HasBlocked = false
	}

	switch {
	case r == role.Bioterrorist:
		plan.RaisePanic = rs.BioterroristIncreasesPanic
	case r == role.PRExpert && rs.PRExpertAvoidsPanicIncrease:
		plan.RaisePanic = false
	default:
		plan.RaisePanic = plan.PanicDice >= rs.DiceToIncreasePanic
	}
	return plan
}

// PenaltyApplies reports whether re-rolling a panic treatment die costs panic.
func PenaltyApplies(rs Ruleset, r role.Role) bool {
	return rs.PenaltyForRerollingPanics && r != role.Epidemiologist
}

// PanicReduces reports whether the treatment roll lowers panic.
func PanicReduces(rs Ruleset, r role.Role, panicLevel, panicCount int) bool {
	need := rs.DiceToReducePanic
	if r == role.PRExpert {
		need = rs.PRDiceToReducePanic
	}
	return panicLevel > 0 && panicCount >= need
}

const (
	fullHouseTriple = 3
	fullHousePair   = 2
)

// Cures reports whether the treatment counts cure the disease.
func Cures(rs Ruleset, r role.Role, disease dice.Face, counts dice.Counts) bool {
	if !disease.IsDisease() {
		return false
	}
	count := counts[disease]
	if count >= rs.DiceToCure {
		return true
	}
	if r == role.PRExpert && count >= rs.PRDiceToCure {
		return true
	}
	if r == role.Scientist && rs.ScientistFullHouse && count >= fullHouseTriple {
		for _, other := range dice.Faces() {
			if other != disease && counts[other] == fullHousePair {
				return true
			}
		}
	}
	return false
}

// RaiseRate returns the infection rate after a cure.
func RaiseRate(rs Ruleset, rate int) int {
	if rate < rs.MaxInfectionRate {
		return rate + 1
	}
	return rate
}

// Clamp bounds a severity level to [0, LosingLevel].
func Clamp(rs Ruleset, level int) int {
	if level < 0 {
		return 0
	}
	if level > rs.LosingLevel {
		return rs.LosingLevel
	}
	return level
}

// Lost reports whether any track has reached the losing level.
func Lost(rs Ruleset, levels Levels, panic int) bool {
	if panic >= rs.LosingLevel {
		return true
	}
	for _, d := range levels {
		if !d.Cured && d.Level >= rs.LosingLevel {
			return true
		}
	}
	return false
}
