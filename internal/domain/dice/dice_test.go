package dice

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFaceLookups(t *testing.T) {
	if Avian.Name() != "Avian Flu" || Avian.Icon() != "avian.png" {
		t.Errorf("unexpected Avian labels: %s %s", Avian.Name(), Avian.Icon())
	}
	if Panic.Name() != "Panic!" || Panic.IsDisease() {
		t.Errorf("Panic should be named Panic! and not be a disease")
	}
	if Face(9).Name() != "Unknown" || Face(9).Icon() != "unknown.png" {
		t.Errorf("invalid faces should fall back to Unknown")
	}
	if len(Diseases()) != DiseaseCount || len(Faces()) != FaceCount {
		t.Errorf("face lists have wrong sizes")
	}
}

func TestFaceJSON(t *testing.T) {
	data, err := json.Marshal([]Face{SARS, Panic})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["sars","panic"]` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var back []Face
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[0] != SARS || back[1] != Panic {
		t.Errorf("round trip mismatch: %v", back)
	}
	if err := json.Unmarshal([]byte(`["measles"]`), &back); err == nil {
		t.Errorf("unknown key should fail")
	}
}

func TestCountFaces(t *testing.T) {
	c := CountFaces([]Face{Avian, Avian, Panic, Ebola, Face(-1)})
	if c[Avian] != 2 || c[Panic] != 1 || c[Ebola] != 1 || c[Swine] != 0 {
		t.Errorf("unexpected counts %v", c)
	}
}

func TestRandRollerDeterministic(t *testing.T) {
	a := RollN(NewRandRoller(42), 20)
	b := RollN(NewRandRoller(42), 20)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, a, b)
		}
		if !a[i].Valid() {
			t.Fatalf("invalid face %d", a[i])
		}
	}
}

func TestRandRollerCoversAllFaces(t *testing.T) {
	r := NewRandRoller(7)
	var seen Counts
	for i := 0; i < 600; i++ {
		seen[Roll(r)]++
	}
	for f, n := range seen {
		if n == 0 {
			t.Errorf("face %s never rolled in 600 draws", Face(f))
		}
	}
}

func TestSequence(t *testing.T) {
	s := FacesSequence(Swine, Panic)
	if Roll(s) != Swine || Roll(s) != Panic {
		t.Fatalf("sequence out of order")
	}
	if s.Err() != nil {
		t.Fatalf("unexpected error %v", s.Err())
	}
	if Roll(s) != Avian {
		t.Errorf("exhausted sequence should yield zero")
	}
	if !errors.Is(s.Err(), ErrSequenceExhausted) {
		t.Errorf("expected ErrSequenceExhausted, got %v", s.Err())
	}

	bad := NewSequence(8)
	bad.Intn(6)
	if !errors.Is(bad.Err(), ErrDrawOutOfRange) {
		t.Errorf("expected ErrDrawOutOfRange, got %v", bad.Err())
	}
}
