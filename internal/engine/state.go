package engine

import (
	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/role"
	"github.com/epidemicexpress/server/internal/domain/rules"
)

// Phase is the active half of a turn.
type Phase string

const (
	PhaseInfection Phase = "infection"
	PhaseTreatment Phase = "treatment"
)

// DiseaseLevel is the severity of one disease track.
type DiseaseLevel = rules.DiseaseLevel

// GameState is the full state of one game. Callers only ever see copies.
type GameState struct {
	Diseases         rules.Levels                   `json:"diseases"`
	PanicLevel       int                            `json:"panic_level"`
	Role             role.Role                      `json:"role"`
	InfectionRate    int                            `json:"infection_rate"`
	RerollsRemaining int                            `json:"rerolls_remaining"`
	Phase            Phase                          `json:"phase"`
	InfectionDice    []dice.Face                    `json:"infection_dice"`
	TreatmentDice    []dice.Face                    `json:"treatment_dice"`
	SavedDice        [rules.TreatmentDiceCount]bool `json:"saved_dice"`
	LockedDice       [rules.TreatmentDiceCount]bool `json:"locked_dice"`
	HasWon           bool                           `json:"has_won"`
	HasLost          bool                           `json:"has_lost"`
	Message          string                         `json:"message"`
	Turn             int                            `json:"turn"`
}

// Terminal reports whether the game has been won or lost.
func (s GameState) Terminal() bool {
	return s.HasWon || s.HasLost
}

// CuredCount returns how many diseases have been cured.
func (s GameState) CuredCount() int {
	n := 0
	for _, d := range s.Diseases {
		if d.Cured {
			n++
		}
	}
	return n
}

// Clone returns a deep copy that shares no memory with s.
func (s GameState) Clone() GameState {
	c := s
	if s.InfectionDice != nil {
		c.InfectionDice = append([]dice.Face(nil), s.InfectionDice...)
	}
	if s.TreatmentDice != nil {
		c.TreatmentDice = append([]dice.Face(nil), s.TreatmentDice...)
	}
	return c
}

func initialState(rs rules.Ruleset) GameState {
	return GameState{
		Role:          role.Medic,
		InfectionRate: rs.InitialInfectionRate,
		Phase:         PhaseInfection,
		InfectionDice: []dice.Face{},
		TreatmentDice: []dice.Face{},
		Message:       "Welcome to Epidemic Express!",
	}
}
