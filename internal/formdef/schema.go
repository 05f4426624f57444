package formdef

import (
	"github.com/agrodata/agroadmin/internal/navigation"
	"github.com/agrodata/agroadmin/internal/types"
)

// UISchema is the framework-agnostic description of a form, served to
// clients that render it.
type UISchema struct {
	Form       string                       `json:"form"`
	Title      string                       `json:"title"`
	Collection string                       `json:"collection"`
	Fields     []FieldSpec                  `json:"fields"`
	Enums      map[string][]types.EnumValue `json:"enums,omitempty"`
	Navigation navigation.Routes            `json:"navigation"`
	Locked     map[string][]types.Role      `json:"locked,omitempty"`
	API        UIAPI                        `json:"api"`
}

// UIAPI names the endpoints a form talks to.
type UIAPI struct {
	Get    UIAPIEndpoint `json:"get"`
	Update UIAPIEndpoint `json:"update"`
}

// UIAPIEndpoint is one HTTP operation.
type UIAPIEndpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// UISchema exports the definition.
func (d *Definition) UISchema() UISchema {
	s := UISchema{
		Form:       d.Name,
		Title:      d.Title,
		Collection: d.Collection,
		Fields:     d.Specs,
		Navigation: d.Routes,
		API: UIAPI{
			Get:    UIAPIEndpoint{Method: "GET", Path: "/v1/" + d.Collection + "/{id}"},
			Update: UIAPIEndpoint{Method: "PUT", Path: "/v1/" + d.Collection + "/{id}"},
		},
	}
	if len(d.Locked) > 0 {
		s.Locked = d.Locked
	}
	for _, f := range d.Specs {
		if f.Enum == "" {
			continue
		}
		if s.Enums == nil {
			s.Enums = map[string][]types.EnumValue{}
		}
		s.Enums[f.Enum] = types.Enums[f.Enum]
	}
	return s
}

// UISchemas exports every definition in name order.
func (r *Registry) UISchemas() []UISchema {
	out := make([]UISchema, 0, len(r.defs))
	for _, n := range r.Names() {
		out = append(out, r.defs[n].UISchema())
	}
	return out
}
