// Package role defines the six per-turn roles and their display catalog.
// This package is PURE and must NOT import any infrastructure packages.
package role

import (
	"fmt"

	"github.com/epidemicexpress/server/internal/domain/dice"
)

// Role is the modifier dealt to the player at the start of every turn.
type Role int

const (
	Medic Role = iota
	Researcher
	PRExpert
	Scientist
	Epidemiologist
	Bioterrorist
)

// Count is the number of roles.
const Count = 6

var roleNames = [Count]string{"Medic", "Researcher", "PR Expert", "Scientist", "Epidemiologist", "Bio-terrorist"}

var roleDescriptions = [Count]string{
	"Avoid one disease level increase",
	"Get an extra treatment roll",
	"Cure disease with 3-of-a-kind",
	"Cure disease with Full House",
	"Re-roll Panics without penalty",
	"All disease levels increase",
}

var roleIcons = [Count]string{"medic.png", "researcher.png", "prexpert.png", "scientist.png", "epidemiologist.png", "bioterrorist.png"}
var roleKeys = [Count]string{"medic", "researcher", "prexpert", "scientist", "epidemiologist", "bioterrorist"}

// All lists every role in index order.
func All() []Role {
	return []Role{Medic, Researcher, PRExpert, Scientist, Epidemiologist, Bioterrorist}
}

// Draw deals a uniformly random role.
func Draw(r dice.Roller) Role {
	return Role(r.Intn(Count))
}

// Valid reports whether r is one of the six roles.
func (r Role) Valid() bool {
	return r >= Medic && r <= Bioterrorist
}

// Name returns the display name of the role.
func (r Role) Name() string {
	if !r.Valid() {
		return "Unknown"
	}
	return roleNames[r]
}

// Description returns the one-line rules summary shown to the player.
func (r Role) Description() string {
	if !r.Valid() {
		return "Unknown role"
	}
	return roleDescriptions[r]
}

// Icon returns the image identifier used by clients for the role.
func (r Role) Icon() string {
	if !r.Valid() {
		return "unknown.png"
	}
	return roleIcons[r]
}

// Key returns the stable wire identifier of the role.
func (r Role) Key() string {
	if !r.Valid() {
		return "unknown"
	}
	return roleKeys[r]
}

func (r Role) String() string {
	return r.Name()
}

// MarshalText encodes the role by its key.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(roleKeys[r]), nil
}

// UnmarshalText decodes a role key.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Parse resolves a role key such as "medic".
func Parse(key string) (Role, error) {
	for i, k := range roleKeys {
		if k == key {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", key)
}
