package engine

import (
	"fmt"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/role"
	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/events"
)

// StartTurn deals a new role and rolls the infection dice.
func (e *Engine) StartTurn() {
	if e.state.Terminal() {
		return
	}
	e.recordAction(events.ActionStartTurn, 0)
	e.startTurn()
	e.notify()
}

func (e *Engine) startTurn() {
	s := &e.state
	s.Turn++
	s.Phase = PhaseInfection
	s.Role = role.Draw(e.roller)
	s.RerollsRemaining = rules.RerollsAllowed(e.rules, s.Role)
	s.LockedDice = [rules.TreatmentDiceCount]bool{}
	s.InfectionDice = dice.RollN(e.roller, rules.InfectionDiceCount(e.rules, s.Role, s.InfectionRate))
	s.Message = fmt.Sprintf("You are the %s", s.Role.Name())

	e.record(events.EventTypeTurnStarted, events.TurnStartedPayload{
		Role:          s.Role,
		Rerolls:       s.RerollsRemaining,
		InfectionRate: s.InfectionRate,
		InfectionDice: append([]dice.Face(nil), s.InfectionDice...),
	})
}

// ApplyInfection resolves the infection dice and, unless the game is lost,
// enters the treatment phase with a first treatment roll.
func (e *Engine) ApplyInfection() {
	s := &e.state
	if s.Terminal() || s.Phase != PhaseInfection || len(s.InfectionDice) == 0 {
		return
	}
	e.recordAction(events.ActionApplyInfection, 0)

	plan := rules.PlanInfection(e.rules, s.Role, s.Diseases, s.InfectionDice)
	var increased []dice.Face
	for _, d := range dice.Diseases() {
		if plan.Increase[d] {
			s.Diseases[d].Level = rules.Clamp(e.rules, s.Diseases[d].Level+1)
			increased = append(increased, d)
		}
	}
	if plan.RaisePanic {
		s.PanicLevel = rules.Clamp(e.rules, s.PanicLevel+1)
	}

	payload := events.InfectionAppliedPayload{
		Increased:   increased,
		PanicDice:   plan.PanicDice,
		PanicRaised: plan.RaisePanic,
		PanicLevel:  s.PanicLevel,
	}
	medicNote := ""
	if plan.HasBlocked {
		blocked := plan.Blocked
		payload.MedicBlocked = &blocked
		medicNote = fmt.Sprintf("Medic avoided infection of %s. ", blocked.Name())
		s.Message = fmt.Sprintf("Medic avoided infection of %s", blocked.Name())
	}
	e.record(events.EventTypeInfectionApplied, payload)

	if e.checkLoss() {
		e.notify()
		return
	}

	s.Phase = PhaseTreatment
	s.TreatmentDice = []dice.Face{}
	s.SavedDice = [rules.TreatmentDiceCount]bool{}
	s.LockedDice = [rules.TreatmentDiceCount]bool{}
	if e.rollTreatment() {
		s.Message = medicNote + "Choose which treatment dice to keep"
	}
	e.notify()
}

// RollTreatment re-rolls every treatment die that is not saved.
func (e *Engine) RollTreatment() {
	if e.state.Terminal() || e.state.Phase != PhaseTreatment {
		return
	}
	e.recordAction(events.ActionRollTreatment, 0)
	e.rollTreatment()
	e.notify()
}

// rollTreatment draws the unsaved slots and reports whether the game goes on.
func (e *Engine) rollTreatment() bool {
	s := &e.state
	for len(s.TreatmentDice) < rules.TreatmentDiceCount {
		// Unrolled slots have no previous face.
		s.TreatmentDice = append(s.TreatmentDice, -1)
	}

	penalty := rules.PenaltyApplies(e.rules, s.Role)
	payload := events.TreatmentRolledPayload{}
	for i := 0; i < rules.TreatmentDiceCount; i++ {
		if s.SavedDice[i] {
			continue
		}
		paid := penalty && s.TreatmentDice[i] == dice.Panic
		if paid {
			s.PanicLevel = rules.Clamp(e.rules, s.PanicLevel+1)
			payload.PanicPenalty++
		}
		face := dice.Roll(e.roller)
		s.TreatmentDice[i] = face
		payload.Slots = append(payload.Slots, i)
		payload.Faces = append(payload.Faces, face)

		// A fresh panic is kept but may be released at a cost; a panic that
		// was already re-rolled once sticks.
		if penalty && face == dice.Panic {
			s.SavedDice[i] = true
			if paid && e.rules.LockPenaltyPanics {
				s.LockedDice[i] = true
				payload.Locked = append(payload.Locked, i)
			}
		}
	}
	payload.PanicLevel = s.PanicLevel
	e.record(events.EventTypeTreatmentRolled, payload)

	return !e.checkLoss()
}

// ToggleSaveDie flips whether the treatment die at index is kept for the
// next roll. Locked dice cannot be released.
func (e *Engine) ToggleSaveDie(index int) {
	s := &e.state
	if s.Terminal() || s.Phase != PhaseTreatment || s.RerollsRemaining <= 0 {
		return
	}
	if index < 0 || index >= len(s.TreatmentDice) {
		return
	}
	e.recordAction(events.ActionToggleSaveDie, index)

	if s.LockedDice[index] {
		s.Message = "Cannot unsave locked panic die!"
		e.record(events.EventTypeDieToggled, events.DieToggledPayload{
			Index: index, Saved: s.SavedDice[index], Rejected: true,
		})
		e.notify()
		return
	}

	s.SavedDice[index] = !s.SavedDice[index]
	verb := "Rerolling"
	if s.SavedDice[index] {
		verb = "Saving"
	}
	s.Message = fmt.Sprintf("%s die %d: %s", verb, index+1, s.TreatmentDice[index].Name())
	e.record(events.EventTypeDieToggled, events.DieToggledPayload{Index: index, Saved: s.SavedDice[index]})
	e.notify()
}

// ConfirmTreatment spends a re-roll, or applies the treatment once none are
// left. Spending the last re-roll keeps every die.
func (e *Engine) ConfirmTreatment() {
	s := &e.state
	if s.Terminal() || s.Phase != PhaseTreatment {
		return
	}
	e.recordAction(events.ActionConfirmTreatment, 0)

	if s.RerollsRemaining <= 0 {
		e.applyTreatment()
		e.notify()
		return
	}

	ok := e.rollTreatment()
	s.RerollsRemaining--
	if ok && s.RerollsRemaining <= 0 {
		for i := range s.SavedDice {
			s.SavedDice[i] = true
		}
		s.Message = "No re-rolls remaining. Confirm treatment."
	}
	e.notify()
}

// ApplyTreatment scores the treatment dice, then either ends the game or
// starts the next turn.
func (e *Engine) ApplyTreatment() {
	if e.state.Terminal() || e.state.Phase != PhaseTreatment {
		return
	}
	e.recordAction(events.ActionApplyTreatment, 0)
	e.applyTreatment()
	e.notify()
}

func (e *Engine) applyTreatment() {
	s := &e.state
	counts := dice.CountFaces(s.TreatmentDice)
	payload := events.TreatmentAppliedPayload{Dice: append([]dice.Face(nil), s.TreatmentDice...)}

	if rules.PanicReduces(e.rules, s.Role, s.PanicLevel, counts[dice.Panic]) {
		s.PanicLevel = rules.Clamp(e.rules, s.PanicLevel-1)
		payload.PanicReduced = true
		s.Message = "Reduced Panic!"
	}

	if !payload.PanicReduced || e.rules.ReduceOthersWhenReducingPanic {
		for _, d := range dice.Diseases() {
			track := &s.Diseases[d]
			if track.Cured {
				continue
			}
			switch {
			case rules.Cures(e.rules, s.Role, d, counts):
				track.Cured = true
				s.InfectionRate = rules.RaiseRate(e.rules, s.InfectionRate)
				if e.rules.ReducePanicOnCure {
					s.PanicLevel = rules.Clamp(e.rules, s.PanicLevel-1)
				}
				payload.Cured = append(payload.Cured, d)
				s.Message = fmt.Sprintf("Cured %s!", d.Name())
			case counts[d] > 0:
				from := track.Level
				track.Level = rules.Clamp(e.rules, track.Level-counts[d])
				payload.Reduced = append(payload.Reduced, events.LevelChange{Disease: d, From: from, To: track.Level})
				s.Message = fmt.Sprintf("Reduced %s to %d", d.Name(), track.Level)
			}
		}
	}
	payload.PanicLevel = s.PanicLevel
	e.record(events.EventTypeTreatmentApplied, payload)
	for _, d := range payload.Cured {
		e.record(events.EventTypeDiseaseCured, events.DiseaseCuredPayload{Disease: d, InfectionRate: s.InfectionRate})
		e.logger.Event(string(events.EventTypeDiseaseCured), e.gameID(), d.Name())
	}

	if s.Diseases.AllCured() {
		s.HasWon = true
		s.Message = "You have won!!!"
		e.record(events.EventTypeGameWon, events.GameEndedPayload{Reason: "all diseases cured", Turns: s.Turn})
		e.logger.Event(string(events.EventTypeGameWon), e.gameID(), fmt.Sprintf("turns=%d", s.Turn))
		return
	}
	if e.checkLoss() {
		return
	}
	e.startTurn()
}

// ResetGame discards the current game and starts a fresh one.
func (e *Engine) ResetGame() {
	e.recordAction(events.ActionResetGame, 0)
	e.state = initialState(e.rules)
	e.startTurn()
	e.notify()
}

// checkLoss marks the game lost when any track has reached the losing level.
func (e *Engine) checkLoss() bool {
	s := &e.state
	if s.HasLost {
		return true
	}
	if !rules.Lost(e.rules, s.Diseases, s.PanicLevel) {
		return false
	}
	s.HasLost = true
	s.Message = "Game Over"
	reason := "panic"
	for _, d := range dice.Diseases() {
		if !s.Diseases[d].Cured && s.Diseases[d].Level >= e.rules.LosingLevel {
			reason = d.Name()
			break
		}
	}
	e.record(events.EventTypeGameLost, events.GameEndedPayload{Reason: reason, Turns: s.Turn})
	e.logger.Event(string(events.EventTypeGameLost), e.gameID(), fmt.Sprintf("reason=%s turns=%d", reason, s.Turn))
	return true
}
