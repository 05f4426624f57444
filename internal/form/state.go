package form

import (
	"slices"
)

// State is the working copy of an entity under edit.
type State struct {
	Values  map[string]any    `json:"values"`
	Touched map[string]bool   `json:"touched"`
	Errors  map[string]string `json:"errors"`
}

// NewState returns the initial state of shape: every path at its zero value,
// untouched and without error.
func NewState(shape *Shape) State {
	st := State{
		Values:  make(map[string]any, len(shape.fields)),
		Touched: make(map[string]bool, len(shape.fields)),
		Errors:  make(map[string]string, len(shape.fields)),
	}
	for _, f := range shape.fields {
		st.Values[f.Path] = f.Zero()
		st.Touched[f.Path] = false
		st.Errors[f.Path] = ""
	}
	return st
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := State{
		Values:  make(map[string]any, len(s.Values)),
		Touched: make(map[string]bool, len(s.Touched)),
		Errors:  make(map[string]string, len(s.Errors)),
	}
	for k, v := range s.Values {
		if list, ok := v.([]string); ok {
			v = slices.Clone(list)
		}
		out.Values[k] = v
	}
	for k, v := range s.Touched {
		out.Touched[k] = v
	}
	for k, v := range s.Errors {
		out.Errors[k] = v
	}
	return out
}

// String returns a scalar value, or "" when the path holds a list.
func (s State) String(path string) string {
	v, _ := s.Values[path].(string)
	return v
}

// Strings returns a multi-select value.
func (s State) Strings(path string) []string {
	v, _ := s.Values[path].([]string)
	return v
}

// VisibleErrors returns the errors of touched paths only.
func (s State) VisibleErrors() map[string]string {
	out := map[string]string{}
	for path, msg := range s.Errors {
		if msg != "" && s.Touched[path] {
			out[path] = msg
		}
	}
	return out
}
