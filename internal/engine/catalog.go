package engine

import (
	"github.com/epidemicexpress/server/internal/domain/dice"
	"github.com/epidemicexpress/server/internal/domain/role"
)

// Entry is the display data of one role or die face.
type Entry struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon"`
}

// CatalogData lists the labels a client needs to render a game.
type CatalogData struct {
	Roles []Entry `json:"roles"`
	Faces []Entry `json:"faces"`
}

// Catalog returns the role and die face lookups in enumeration order.
func Catalog() CatalogData {
	var c CatalogData
	for _, r := range role.All() {
		c.Roles = append(c.Roles, Entry{Key: r.Key(), Name: r.Name(), Description: r.Description(), Icon: r.Icon()})
	}
	for _, f := range dice.Faces() {
		c.Faces = append(c.Faces, Entry{Key: f.Key(), Name: f.Name(), Icon: f.Icon()})
	}
	return c
}
