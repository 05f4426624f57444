// Package navigation decides where a user lands after a successful edit.
package navigation

import (
	"strings"

	"github.com/agrodata/agroadmin/internal/types"
)

// Actor is the user performing an edit.
type Actor struct {
	ID   string     `json:"id"`
	Role types.Role `json:"role"`
}

// Routes maps a role to a destination template. Templates may use the
// placeholders {id} and {role}, expanded from the acting user.
type Routes struct {
	ByRole  map[types.Role]string `json:"by_role,omitempty"`
	Default string                `json:"default"`
}

// Destination resolves the landing path for actor.
func (r Routes) Destination(actor Actor) string {
	tmpl, ok := r.ByRole[actor.Role]
	if !ok {
		tmpl = r.Default
	}
	return strings.NewReplacer(
		"{id}", actor.ID,
		"{role}", actor.Role.String(),
	).Replace(tmpl)
}
