package form

import (
	"encoding/json"
	"strconv"
)

// Action is a state transition understood by Reduce.
type Action interface {
	apply(shape *Shape, st State) State
}

// Reduce applies a to a copy of st. The input state is never modified.
// Actions addressing undeclared paths leave the state unchanged.
func Reduce(shape *Shape, st State, a Action) State {
	return a.apply(shape, st.Clone())
}

// SetField stores a user-entered value and marks the path touched.
type SetField struct {
	Path  string
	Value any
}

func (a SetField) apply(shape *Shape, st State) State {
	f, ok := shape.Field(a.Path)
	if !ok {
		return st
	}
	st.Values[a.Path] = coerce(f, a.Value, nil)
	st.Touched[a.Path] = true
	return st
}

// Populate copies every declared path from a fetched document. Paths the
// document lacks fall back to their zero value. Touched flags are kept.
type Populate struct {
	Document map[string]any
	Catalog  Catalog
}

func (a Populate) apply(shape *Shape, st State) State {
	for _, f := range shape.fields {
		v, ok := Lookup(a.Document, f.Path)
		if !ok {
			st.Values[f.Path] = f.Zero()
			continue
		}
		st.Values[f.Path] = coerce(f, v, a.Catalog)
	}
	return st
}

// MarkTouched flags one path as touched.
type MarkTouched struct {
	Path string
}

func (a MarkTouched) apply(shape *Shape, st State) State {
	if shape.Has(a.Path) {
		st.Touched[a.Path] = true
	}
	return st
}

// MarkAllTouched flags every declared path, making all errors visible.
type MarkAllTouched struct{}

func (MarkAllTouched) apply(shape *Shape, st State) State {
	for _, f := range shape.fields {
		st.Touched[f.Path] = true
	}
	return st
}

// SetErrors replaces the error map with a validation result. Paths absent
// from the result are reset to "".
type SetErrors struct {
	Errors map[string]string
}

func (a SetErrors) apply(shape *Shape, st State) State {
	for _, f := range shape.fields {
		st.Errors[f.Path] = a.Errors[f.Path]
	}
	return st
}

// coerce converts a raw value into the representation the field kind holds.
func coerce(f Field, v any, cat Catalog) any {
	if f.Kind == KindMultiSelect {
		return coerceList(f, v, cat)
	}
	return scalarString(v)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func coerceList(f Field, v any, cat Catalog) []string {
	out := []string{}
	switch x := v.(type) {
	case []string:
		out = append(out, x...)
	case string:
		if x != "" {
			out = append(out, x)
		}
	case []any:
		for _, item := range x {
			if s, ok := itemLabel(f, item, cat); ok {
				out = append(out, s)
			}
		}
	case []map[string]any:
		for _, item := range x {
			if s, ok := itemLabel(f, item, cat); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// itemLabel renders one element of a multi-select list. Reference objects
// ({"value": id}) resolve to their catalog label; an unresolvable id is kept
// as-is so the selection survives a round trip.
func itemLabel(f Field, item any, cat Catalog) (string, bool) {
	switch x := item.(type) {
	case string:
		return x, true
	case map[string]any:
		for _, key := range []string{"label", "name"} {
			if s, ok := x[key].(string); ok && s != "" {
				return s, true
			}
		}
		for _, key := range []string{"value", "id"} {
			id, ok := x[key].(string)
			if !ok || id == "" {
				continue
			}
			if label, ok := cat.Label(f.Options, id); ok {
				return label, true
			}
			return id, true
		}
	}
	return "", false
}
