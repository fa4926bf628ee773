package role

import (
	"encoding/json"
	"testing"

	"github.com/epidemicexpress/server/internal/domain/dice"
)

func TestRoleCatalog(t *testing.T) {
	tests := []struct {
		role Role
		name string
		desc string
		icon string
	}{
		{Medic, "Medic", "Avoid one disease level increase", "medic.png"},
		{Researcher, "Researcher", "Get an extra treatment roll", "researcher.png"},
		{PRExpert, "PR Expert", "Cure disease with 3-of-a-kind", "prexpert.png"},
		{Scientist, "Scientist", "Cure disease with Full House", "scientist.png"},
		{Epidemiologist, "Epidemiologist", "Re-roll Panics without penalty", "epidemiologist.png"},
		{Bioterrorist, "Bio-terrorist", "All disease levels increase", "bioterrorist.png"},
		{Role(42), "Unknown", "Unknown role", "unknown.png"},
	}
	for _, tt := range tests {
		if tt.role.Name() != tt.name || tt.role.Description() != tt.desc || tt.role.Icon() != tt.icon {
			t.Errorf("role %d: got %q %q %q", int(tt.role), tt.role.Name(), tt.role.Description(), tt.role.Icon())
		}
	}
}

func TestDrawUsesRoller(t *testing.T) {
	if got := Draw(dice.NewSequence(4)); got != Epidemiologist {
		t.Errorf("Draw = %s, want Epidemiologist", got)
	}
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(PRExpert)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"prexpert"` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var r Role
	if err := json.Unmarshal([]byte(`"bioterrorist"`), &r); err != nil || r != Bioterrorist {
		t.Errorf("unmarshal got %v, %v", r, err)
	}
}
