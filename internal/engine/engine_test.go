package engine

import (
	"strings"
	"testing"

	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/role"
	"github.com/epidemicexpress/server/internal/domain/rules"
)

const (
	A  = int(dice.Avian)
	Sw = int(dice.Swine)
	Sa = int(dice.SARS)
	Sm = int(dice.Smallpox)
	Eb = int(dice.Ebola)
	P  = int(dice.Panic)
)

func newTestEngine(rs rules.Ruleset, draws ...int) (*Engine, *dice.Sequence) {
	seq := dice.NewSequence(draws...)
	return New(rs, seq), seq
}

// inTreatment puts the engine straight into a treatment phase with the given dice.
func inTreatment(e *Engine, r role.Role, rerolls int, faces ...dice.Face) {
	e.state.Turn = 1
	e.state.Role = r
	e.state.Phase = PhaseTreatment
	e.state.RerollsRemaining = rerolls
	e.state.TreatmentDice = append([]dice.Face(nil), faces...)
	e.state.SavedDice = [rules.TreatmentDiceCount]bool{}
	e.state.LockedDice = [rules.TreatmentDiceCount]bool{}
}

func TestNewGameState(t *testing.T) {
	e, _ := newTestEngine(rules.Default())
	s := e.State()

	if s.Phase != PhaseInfection || s.InfectionRate != 3 || s.PanicLevel != 0 {
		t.Errorf("unexpected initial state: %+v", s)
	}
	if s.Message != "Welcome to Epidemic Express!" {
		t.Errorf("unexpected message %q", s.Message)
	}
	for i, d := range s.Diseases {
		if d.Level != 0 || d.Cured {
			t.Errorf("disease %d should start at 0, got %+v", i, d)
		}
	}
	if s.HasWon || s.HasLost {
		t.Error("new game should not be terminal")
	}
}

func TestStartTurnRollsInfection(t *testing.T) {
	tests := []struct {
		name    string
		rs      rules.Ruleset
		draws   []int
		role    role.Role
		dice    int
		rerolls int
	}{
		{"medic", rules.Default(), []int{0, A, Sw, Sa}, role.Medic, 3, 2},
		{"researcher gets extra reroll", rules.Default(), []int{1, A, Sw, Sa}, role.Researcher, 3, 3},
		{"epidemiologist rolls one fewer", rules.Default(), []int{4, A, Sw}, role.Epidemiologist, 2, 2},
		{"classic epidemiologist rolls full rate", rules.Classic(), []int{4, A, Sw, Sa}, role.Epidemiologist, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, seq := newTestEngine(tt.rs, tt.draws...)
			e.StartTurn()
			s := e.State()

			if s.Phase != PhaseInfection {
				t.Errorf("expected infection phase, got %s", s.Phase)
			}
			if s.Role != tt.role {
				t.Errorf("expected role %s, got %s", tt.role, s.Role)
			}
			if len(s.InfectionDice) != tt.dice {
				t.Errorf("expected %d infection dice, got %d", tt.dice, len(s.InfectionDice))
			}
			if s.RerollsRemaining != tt.rerolls {
				t.Errorf("expected %d rerolls, got %d", tt.rerolls, s.RerollsRemaining)
			}
			if s.Turn != 1 {
				t.Errorf("expected turn 1, got %d", s.Turn)
			}
			if seq.Err() != nil || seq.Remaining() != 0 {
				t.Errorf("draws not consumed exactly: err=%v remaining=%d", seq.Err(), seq.Remaining())
			}
		})
	}
}

func TestMedicBlocksFirstHighestDisease(t *testing.T) {
	e, seq := newTestEngine(rules.Default(),
		0, A, A, Sw,        // medic, infection dice
		Sa, Sa, Eb, Eb, Sm, // first treatment roll
	)
	e.StartTurn()
	e.ApplyInfection()
	s := e.State()

	if s.Diseases[dice.Avian].Level != 0 {
		t.Errorf("medic should have blocked Avian, level is %d", s.Diseases[dice.Avian].Level)
	}
	if s.Diseases[dice.Swine].Level != 1 {
		t.Errorf("Swine should increase to 1, got %d", s.Diseases[dice.Swine].Level)
	}
	if s.Phase != PhaseTreatment || len(s.TreatmentDice) != rules.TreatmentDiceCount {
		t.Errorf("expected treatment phase with 5 dice, got %s %v", s.Phase, s.TreatmentDice)
	}
	if !strings.Contains(s.Message, "Medic avoided infection of Avian Flu") {
		t.Errorf("unexpected message %q", s.Message)
	}
	if seq.Remaining() != 0 {
		t.Errorf("expected all draws consumed, %d left", seq.Remaining())
	}
}

func TestMedicBlocksOnlyTheHighestLevel(t *testing.T) {
	e, _ := newTestEngine(rules.Default(), 0, A, Sw, Sa, Sa, Sa, Eb, Eb, Sm)
	e.state.Diseases[dice.Swine].Level = 3
	e.state.Diseases[dice.Avian].Level = 2
	e.StartTurn()
	e.ApplyInfection()
	s := e.State()

	if s.Diseases[dice.Swine].Level != 3 {
		t.Errorf("Swine should be blocked at 3, got %d", s.Diseases[dice.Swine].Level)
	}
	if s.Diseases[dice.Avian].Level != 3 {
		t.Errorf("Avian should rise to 3, got %d", s.Diseases[dice.Avian].Level)
	}
	if s.Diseases[dice.SARS].Level != 1 {
		t.Errorf("SARS should rise to 1, got %d", s.Diseases[dice.SARS].Level)
	}
}

func TestBioterroristRaisesEveryDisease(t *testing.T) {
	e, _ := newTestEngine(rules.Default(), 5, P, P, A, A, Sw, Sa, Sm, Eb)
	e.state.Diseases[dice.Ebola] = DiseaseLevel{Level: 2, Cured: true}
	e.StartTurn()
	e.ApplyInfection()
	s := e.State()

	for _, d := range []dice.Face{dice.Avian, dice.Swine, dice.SARS, dice.Smallpox} {
		if s.Diseases[d].Level != 1 {
			t.Errorf("%s should be 1, got %d", d.Name(), s.Diseases[d].Level)
		}
	}
	if s.Diseases[dice.Ebola] != (DiseaseLevel{Level: 2, Cured: true}) {
		t.Errorf("cured Ebola must not change, got %+v", s.Diseases[dice.Ebola])
	}
	if s.PanicLevel != 0 {
		t.Errorf("bioterrorist suppresses panic, got %d", s.PanicLevel)
	}
}

func TestPanicRisesByOneOnTwoOrMorePanicDice(t *testing.T) {
	tests := []struct {
		name  string
		draws []int
		want  int
	}{
		{"one panic die", []int{1, P, A, Sw}, 0},
		{"two panic dice", []int{1, P, P, Sw}, 1},
		{"three panic dice", []int{1, P, P, P}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draws := append(tt.draws, A, A, Sw, Sw, Sa)
			e, _ := newTestEngine(rules.Default(), draws...)
			e.StartTurn()
			e.ApplyInfection()
			if got := e.State().PanicLevel; got != tt.want {
				t.Errorf("expected panic %d, got %d", tt.want, got)
			}
		})
	}
}

func TestInfectionLossSkipsTreatment(t *testing.T) {
	e, seq := newTestEngine(rules.Default(), 1, Sm, A, Sw)
	e.state.Diseases[dice.Smallpox].Level = 5
	e.StartTurn()
	e.ApplyInfection()
	s := e.State()

	if !s.HasLost || s.HasWon {
		t.Fatalf("expected loss, got won=%v lost=%v", s.HasWon, s.HasLost)
	}
	if s.Phase != PhaseInfection || len(s.TreatmentDice) != 0 {
		t.Errorf("no treatment phase should follow a loss: %s %v", s.Phase, s.TreatmentDice)
	}
	if s.Diseases[dice.Smallpox].Level != 6 {
		t.Errorf("expected Smallpox at the losing level, got %d", s.Diseases[dice.Smallpox].Level)
	}
	if seq.Err() != nil {
		t.Errorf("no treatment draw expected: %v", seq.Err())
	}
}

func TestCureRaisesInfectionRate(t *testing.T) {
	e, seq := newTestEngine(rules.Default(), 0, Sw, Sw, Sw, Sw)
	inTreatment(e, role.Researcher, 0, dice.Avian, dice.Avian, dice.Avian, dice.Avian, dice.Swine)
	e.ApplyTreatment()
	s := e.State()

	if !s.Diseases[dice.Avian].Cured {
		t.Fatal("Avian should be cured")
	}
	if s.InfectionRate != 4 {
		t.Errorf("expected infection rate 4, got %d", s.InfectionRate)
	}
	if s.Diseases[dice.Swine].Level != 0 {
		t.Errorf("Swine reduction floors at 0, got %d", s.Diseases[dice.Swine].Level)
	}
	if s.Turn != 2 || s.Phase != PhaseInfection || len(s.InfectionDice) != 4 {
		t.Errorf("next turn should roll 4 dice: turn=%d phase=%s dice=%v", s.Turn, s.Phase, s.InfectionDice)
	}
	if seq.Err() != nil || seq.Remaining() != 0 {
		t.Errorf("unexpected draw use: err=%v remaining=%d", seq.Err(), seq.Remaining())
	}
}

func TestCureThroughConfirmTreatment(t *testing.T) {
	e, seq := newTestEngine(rules.Default(), 0, Sm, Sm, Sm, Sm)
	inTreatment(e, role.Medic, 0, dice.Avian, dice.Avian, dice.Avian, dice.Avian, dice.Ebola)
	e.ConfirmTreatment()
	s := e.State()

	if !s.Diseases[dice.Avian].Cured {
		t.Fatal("four Avian dice should cure Avian Flu")
	}
	if s.InfectionRate != 4 {
		t.Errorf("expected infection rate 3 -> 4, got %d", s.InfectionRate)
	}
	if s.Turn != 2 || len(s.InfectionDice) != 4 {
		t.Errorf("the next turn should roll 4 dice: turn=%d dice=%v", s.Turn, s.InfectionDice)
	}
	if seq.Err() != nil || seq.Remaining() != 0 {
		t.Errorf("unexpected draw use: err=%v remaining=%d", seq.Err(), seq.Remaining())
	}
}

func TestInfectionRateCapped(t *testing.T) {
	e, _ := newTestEngine(rules.Default(), 0, A, A, A, A, A, A, A)
	inTreatment(e, role.Medic, 0, dice.Swine, dice.Swine, dice.Swine, dice.Swine, dice.Avian)
	e.state.InfectionRate = 7
	e.ApplyTreatment()
	if got := e.State().InfectionRate; got != 7 {
		t.Errorf("infection rate must stay at 7, got %d", got)
	}
}

func TestTreatmentCures(t *testing.T) {
	tests := []struct {
		name  string
		role  role.Role
		faces []dice.Face
		cured []dice.Face
	}{
		{"three of a kind is not enough", role.Medic,
			[]dice.Face{dice.SARS, dice.SARS, dice.SARS, dice.Ebola, dice.Avian}, nil},
		{"pr expert cures on three", role.PRExpert,
			[]dice.Face{dice.SARS, dice.SARS, dice.SARS, dice.Ebola, dice.Avian}, []dice.Face{dice.SARS}},
		{"scientist full house", role.Scientist,
			[]dice.Face{dice.SARS, dice.SARS, dice.SARS, dice.Ebola, dice.Ebola}, []dice.Face{dice.SARS}},
		{"scientist without pair", role.Scientist,
			[]dice.Face{dice.SARS, dice.SARS, dice.SARS, dice.Ebola, dice.Avian}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(rules.Default(), 0, Sm, Sm, Sm, Sm)
			inTreatment(e, tt.role, 0, tt.faces...)
			e.state.Diseases[dice.Ebola].Level = 1
			e.ApplyTreatment()
			s := e.State()

			want := map[dice.Face]bool{}
			for _, d := range tt.cured {
				want[d] = true
			}
			for _, d := range dice.Diseases() {
				if s.Diseases[d].Cured != want[d] {
					t.Errorf("%s cured=%v, want %v", d.Name(), s.Diseases[d].Cured, want[d])
				}
			}
			if !s.Diseases[dice.Ebola].Cured && s.Diseases[dice.Ebola].Level != 0 {
				t.Errorf("Ebola should be reduced to 0, got %d", s.Diseases[dice.Ebola].Level)
			}
		})
	}
}

func TestPanicReduction(t *testing.T) {
	tests := []struct {
		name  string
		role  role.Role
		panic int
		faces []dice.Face
		want  int
	}{
		{"four panics", role.Medic, 2, []dice.Face{dice.Panic, dice.Panic, dice.Panic, dice.Panic, dice.Avian}, 1},
		{"three panics not enough", role.Medic, 2, []dice.Face{dice.Panic, dice.Panic, dice.Panic, dice.Avian, dice.Avian}, 2},
		{"pr expert needs three", role.PRExpert, 2, []dice.Face{dice.Panic, dice.Panic, dice.Panic, dice.Avian, dice.Avian}, 1},
		{"never below zero", role.Medic, 0, []dice.Face{dice.Panic, dice.Panic, dice.Panic, dice.Panic, dice.Panic}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(rules.Default(), 0, Sm, Sm, Sm)
			inTreatment(e, tt.role, 0, tt.faces...)
			e.state.PanicLevel = tt.panic
			e.ApplyTreatment()
			if got := e.State().PanicLevel; got != tt.want {
				t.Errorf("expected panic %d, got %d", tt.want, got)
			}
		})
	}
}

func TestReducingPanicCanEndTreatment(t *testing.T) {
	rs := rules.Default()
	rs.ReduceOthersWhenReducingPanic = false
	e, _ := newTestEngine(rs, 0, Sm, Sm, Sm)
	inTreatment(e, role.Medic, 0, dice.Panic, dice.Panic, dice.Panic, dice.Panic, dice.Avian)
	e.state.PanicLevel = 2
	e.state.Diseases[dice.Avian].Level = 3
	e.ApplyTreatment()
	s := e.State()

	if s.PanicLevel != 1 {
		t.Errorf("expected panic 1, got %d", s.PanicLevel)
	}
	if s.Diseases[dice.Avian].Level != 3 {
		t.Errorf("Avian should be untouched, got %d", s.Diseases[dice.Avian].Level)
	}
	if s.Turn != 2 {
		t.Errorf("next turn should still start, turn=%d", s.Turn)
	}
}

func TestReducePanicOnCure(t *testing.T) {
	rs := rules.Default()
	rs.ReducePanicOnCure = true
	e, _ := newTestEngine(rs, 0, Sm, Sm, Sm, Sm)
	inTreatment(e, role.Medic, 0, dice.Avian, dice.Avian, dice.Avian, dice.Avian, dice.Swine)
	e.state.PanicLevel = 3
	e.ApplyTreatment()
	if got := e.State().PanicLevel; got != 2 {
		t.Errorf("expected panic 2 after a cure, got %d", got)
	}
}

func TestWinStopsTheGame(t *testing.T) {
	e, seq := newTestEngine(rules.Default(), 0, A, A, A)
	for _, d := range []dice.Face{dice.Avian, dice.Swine, dice.SARS, dice.Smallpox} {
		e.state.Diseases[d] = DiseaseLevel{Level: 1, Cured: true}
	}
	inTreatment(e, role.Medic, 0, dice.Ebola, dice.Ebola, dice.Ebola, dice.Ebola, dice.Avian)
	e.state.PanicLevel = 4
	e.ApplyTreatment()
	s := e.State()

	if !s.HasWon || s.HasLost {
		t.Fatalf("expected a win, got won=%v lost=%v", s.HasWon, s.HasLost)
	}
	if s.Message != "You have won!!!" {
		t.Errorf("unexpected message %q", s.Message)
	}
	if s.Turn != 1 {
		t.Errorf("no turn should start after a win, turn=%d", s.Turn)
	}

	e.StartTurn()
	e.ConfirmTreatment()
	if got := e.State(); got.Turn != 1 || !got.HasWon {
		t.Errorf("terminal game should ignore operations: %+v", got)
	}

	e.ResetGame()
	s = e.State()
	if s.HasWon || s.Turn != 1 || s.CuredCount() != 0 || s.InfectionRate != 3 {
		t.Errorf("reset should start a fresh game: %+v", s)
	}
	if seq.Remaining() != 0 {
		t.Errorf("reset should consume the role and infection draws, %d left", seq.Remaining())
	}
}

func TestPenaltyPanicLocksWhenRolledAgain(t *testing.T) {
	e, _ := newTestEngine(rules.Default(),
		0, A, Sw, Sa, // medic, infection
		P, A, A, Sw, Sw, // first treatment roll
		P, Sa, Sa, Sa, Sa, // reroll of every die
	)
	e.StartTurn()
	e.ApplyInfection()
	s := e.State()
	if !s.SavedDice[0] || s.LockedDice[0] {
		t.Fatalf("a fresh panic is kept but not locked: saved=%v locked=%v", s.SavedDice, s.LockedDice)
	}

	e.ToggleSaveDie(0)
	if e.State().SavedDice[0] {
		t.Fatal("a fresh panic can be released")
	}
	e.ConfirmTreatment()
	s = e.State()
	if s.PanicLevel != 1 {
		t.Errorf("re-rolling the panic should cost one panic, got %d", s.PanicLevel)
	}
	if !s.SavedDice[0] || !s.LockedDice[0] {
		t.Fatalf("a panic rolled again should be saved and locked: saved=%v locked=%v", s.SavedDice, s.LockedDice)
	}

	e.ToggleSaveDie(0)
	s = e.State()
	if !s.SavedDice[0] {
		t.Error("locked die must stay saved")
	}
	if s.Message != "Cannot unsave locked panic die!" {
		t.Errorf("unexpected message %q", s.Message)
	}
}

func TestPenaltyPanicLosesGame(t *testing.T) {
	for _, tt := range []struct {
		name string
		rs   rules.Ruleset
	}{
		{"default", rules.Default()},
		{"classic", rules.Classic()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(tt.rs,
				0, A, Sw, Sa, // medic, infection
				P, A, A, Sw, Sw, // first treatment roll
				P, Sa, Sa, Sa, Sa, // reroll
			)
			e.StartTurn()
			e.ApplyInfection()
			if s := e.State(); !s.SavedDice[0] || s.LockedDice[0] {
				t.Fatalf("the first panic is saved without a lock: saved=%v locked=%v", s.SavedDice, s.LockedDice)
			}

			e.ToggleSaveDie(0)
			if e.State().SavedDice[0] {
				t.Fatal("the panic die should be released")
			}
			e.state.PanicLevel = 5
			e.ConfirmTreatment()
			s := e.State()

			if s.PanicLevel != 6 || !s.HasLost || s.HasWon {
				t.Fatalf("expected loss at panic 6, got panic=%d won=%v lost=%v", s.PanicLevel, s.HasWon, s.HasLost)
			}
			if s.Message != "Game Over" {
				t.Errorf("unexpected message %q", s.Message)
			}

			before := e.State()
			e.ApplyTreatment()
			e.ConfirmTreatment()
			if after := e.State(); after.Turn != before.Turn || after.Phase != before.Phase {
				t.Errorf("no further treatment after a loss: %+v", after)
			}
		})
	}
}

func TestClassicPenaltyPanicNeverLocks(t *testing.T) {
	e, _ := newTestEngine(rules.Classic(), P, A, A, A, A)
	inTreatment(e, role.Medic, 2, dice.Panic, dice.Avian, dice.Avian, dice.Avian, dice.Avian)
	e.state.SavedDice = [rules.TreatmentDiceCount]bool{false, true, true, true, true}
	e.ConfirmTreatment()
	s := e.State()

	if s.PanicLevel != 1 || !s.SavedDice[0] || s.LockedDice[0] {
		t.Errorf("classic rules charge and keep the panic without locking: panic=%d saved=%v locked=%v",
			s.PanicLevel, s.SavedDice, s.LockedDice)
	}
}

func TestEpidemiologistRerollsPanicFree(t *testing.T) {
	e, _ := newTestEngine(rules.Default(), P, A, A, A, A)
	inTreatment(e, role.Epidemiologist, 1, dice.Panic, dice.Panic, dice.Panic, dice.Panic, dice.Panic)
	e.state.PanicLevel = 5
	e.RollTreatment()
	s := e.State()

	if s.PanicLevel != 5 || s.HasLost {
		t.Errorf("epidemiologist should not pay the penalty: panic=%d", s.PanicLevel)
	}
	if s.SavedDice[0] || s.LockedDice[0] {
		t.Error("epidemiologist panic dice are not auto-saved")
	}
}

func TestToggleSaveDie(t *testing.T) {
	e, _ := newTestEngine(rules.Default())
	inTreatment(e, role.Medic, 1, dice.Avian, dice.Swine, dice.SARS, dice.Smallpox, dice.Ebola)

	e.ToggleSaveDie(2)
	if s := e.State(); !s.SavedDice[2] || s.Message != "Saving die 3: SARS" {
		t.Errorf("expected die 3 saved, got %v %q", s.SavedDice, s.Message)
	}
	e.ToggleSaveDie(2)
	if s := e.State(); s.SavedDice[2] || s.Message != "Rerolling die 3: SARS" {
		t.Errorf("expected die 3 released, got %v %q", s.SavedDice, s.Message)
	}

	before := e.State()
	e.ToggleSaveDie(-1)
	e.ToggleSaveDie(rules.TreatmentDiceCount)
	if after := e.State(); after.SavedDice != before.SavedDice || after.Message != before.Message {
		t.Error("out of range toggles must be ignored")
	}

	e.state.RerollsRemaining = 0
	e.ToggleSaveDie(1)
	if e.State().SavedDice[1] {
		t.Error("toggling without rerolls must be ignored")
	}
}

func TestConfirmTreatmentSpendsRerolls(t *testing.T) {
	e, seq := newTestEngine(rules.Default(),
		A, Sw, Sa,    // reroll of three unsaved dice
		0, A, Sw, Sa, // next turn
	)
	inTreatment(e, role.Medic, 1, dice.Ebola, dice.Ebola, dice.Smallpox, dice.Smallpox, dice.Smallpox)
	e.state.SavedDice[0] = true
	e.state.SavedDice[1] = true

	e.ConfirmTreatment()
	s := e.State()
	if s.RerollsRemaining != 0 {
		t.Errorf("expected no rerolls left, got %d", s.RerollsRemaining)
	}
	if want := []dice.Face{dice.Ebola, dice.Ebola, dice.Avian, dice.Swine, dice.SARS}; !equalFaces(s.TreatmentDice, want) {
		t.Errorf("expected %v, got %v", want, s.TreatmentDice)
	}
	for i, saved := range s.SavedDice {
		if !saved {
			t.Errorf("die %d should be saved once rerolls run out", i)
		}
	}
	if s.Message != "No re-rolls remaining. Confirm treatment." {
		t.Errorf("unexpected message %q", s.Message)
	}

	e.ConfirmTreatment()
	s = e.State()
	if s.Turn != 2 || s.Phase != PhaseInfection {
		t.Errorf("second confirm should apply treatment and start a turn: turn=%d phase=%s", s.Turn, s.Phase)
	}
	if seq.Remaining() != 0 {
		t.Errorf("expected all draws consumed, %d left", seq.Remaining())
	}
}

func TestOutOfPhaseCallsAreIgnored(t *testing.T) {
	e, seq := newTestEngine(rules.Default(), 0, A, Sw, Sa)
	calls := 0
	e.Subscribe(func(GameState) { calls++ })

	e.ApplyInfection()
	e.RollTreatment()
	e.ConfirmTreatment()
	e.ApplyTreatment()
	e.ToggleSaveDie(0)
	if calls != 0 {
		t.Errorf("ignored calls must not notify, got %d", calls)
	}

	e.StartTurn()
	e.RollTreatment()
	e.ToggleSaveDie(0)
	if calls != 1 {
		t.Errorf("expected one notification, got %d", calls)
	}
	if seq.Err() != nil {
		t.Errorf("ignored calls must not draw: %v", seq.Err())
	}
}

func TestSubscribeSnapshots(t *testing.T) {
	e, _ := newTestEngine(rules.Default(), 0, A, Sw, Sa, Sa, Sa, Eb, Eb, Sm, 0, A, A, A)
	var first, second []GameState
	unsubscribe := e.Subscribe(func(s GameState) { first = append(first, s) })
	e.Subscribe(func(s GameState) { second = append(second, s) })

	e.StartTurn()
	e.ApplyInfection()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected one notification per operation, got %d and %d", len(first), len(second))
	}
	if first[1].Phase != PhaseTreatment {
		t.Errorf("snapshot should reflect the treatment phase, got %s", first[1].Phase)
	}

	first[1].TreatmentDice[0] = dice.Panic
	first[1].Diseases[0].Level = 5
	if s := e.State(); s.TreatmentDice[0] == dice.Panic || s.Diseases[0].Level == 5 {
		t.Error("snapshots must not share memory with the engine")
	}

	unsubscribe()
	e.ToggleSaveDie(1)
	if len(first) != 2 || len(second) != 3 {
		t.Errorf("unsubscribed callback still called: %d and %d", len(first), len(second))
	}
}

func TestRandomPlayKeepsInvariants(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		e := New(rules.Default(), dice.NewRandRoller(seed))
		var cured [dice.DiseaseCount]*DiseaseLevel
		e.Subscribe(func(s GameState) {
			checkInvariants(t, seed, s)
			for i, d := range s.Diseases {
				if cured[i] != nil && *cured[i] != d {
					t.Errorf("seed %d: cured disease %d changed from %+v to %+v", seed, i, *cured[i], d)
				}
				if d.Cured && cured[i] == nil {
					c := d
					cured[i] = &c
				}
			}
		})
		e.ResetGame()
		for step := 0; step < 20000 && !e.State().Terminal(); step++ {
			playStep(e, step)
		}
		if !e.State().Terminal() {
			t.Errorf("seed %d: game did not finish", seed)
		}
	}
}

func checkInvariants(t *testing.T, seed int64, s GameState) {
	t.Helper()
	if s.HasWon && s.HasLost {
		t.Errorf("seed %d: won and lost at once", seed)
	}
	if s.PanicLevel < 0 || s.PanicLevel > 6 {
		t.Errorf("seed %d: panic out of range: %d", seed, s.PanicLevel)
	}
	for i, d := range s.Diseases {
		if d.Level < 0 || d.Level > 6 {
			t.Errorf("seed %d: disease %d out of range: %d", seed, i, d.Level)
		}
	}
	if s.InfectionRate < 3 || s.InfectionRate > 7 {
		t.Errorf("seed %d: infection rate out of range: %d", seed, s.InfectionRate)
	}
	if s.Phase == PhaseInfection && !s.Terminal() && len(s.InfectionDice) != rules.InfectionDiceCount(rules.Default(), s.Role, s.InfectionRate) {
		t.Errorf("seed %d: %d infection dice at rate %d for %s", seed, len(s.InfectionDice), s.InfectionRate, s.Role)
	}
}

// playStep keeps dice that match the most common disease and confirms.
func playStep(e *Engine, step int) {
	s := e.State()
	switch s.Phase {
	case PhaseInfection:
		e.ApplyInfection()
	case PhaseTreatment:
		if s.RerollsRemaining > 0 && step%3 == 0 {
			counts := dice.CountFaces(s.TreatmentDice)
			best := dice.Avian
			for _, d := range dice.Diseases() {
				if counts[d] > counts[best] && !s.Diseases[d].Cured {
					best = d
				}
			}
			for i, f := range s.TreatmentDice {
				if (f == best) != s.SavedDice[i] {
					e.ToggleSaveDie(i)
				}
			}
		}
		e.ConfirmTreatment()
	}
}

func equalFaces(a, b []dice.Face) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDispatchUnknownAction(t *testing.T) {
	e, _ := newTestEngine(rules.Default())
	if err := e.Dispatch("fly", 0); err == nil {
		t.Error("expected an error for an unknown action")
	}
}

func TestCatalog(t *testing.T) {
	c := Catalog()
	if len(c.Roles) != role.Count || len(c.Faces) != dice.FaceCount {
		t.Fatalf("unexpected catalog sizes: %d roles, %d faces", len(c.Roles), len(c.Faces))
	}
	if c.Roles[5].Name != "Bio-terrorist" || c.Roles[5].Description != "All disease levels increase" {
		t.Errorf("unexpected bioterrorist entry: %+v", c.Roles[5])
	}
	if c.Faces[5].Icon != "panic.png" {
		t.Errorf("unexpected panic icon %q", c.Faces[5].Icon)
	}
}
