package form

import (
	"slices"
	"strings"
)

// Option is one choice of a catalog-backed field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Catalog holds the options of each referenced collection.
type Catalog map[string][]Option

// Label resolves an option id to its label.
func (c Catalog) Label(collection, value string) (string, bool) {
	for _, o := range c[collection] {
		if o.Value == value {
			return o.Label, true
		}
	}
	return "", false
}

// Value resolves a label back to its option id. A string that already is an
// option id resolves to itself.
func (c Catalog) Value(collection, label string) (string, bool) {
	for _, o := range c[collection] {
		if o.Label == label {
			return o.Value, true
		}
	}
	for _, o := range c[collection] {
		if o.Value == label {
			return o.Value, true
		}
	}
	return "", false
}

// Lookup reads a dot path from a nested document. A missing segment, or a
// non-object on the way, reports false.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// assign writes v at path, creating intermediate objects.
func assign(doc map[string]any, path string, v any) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// Payload builds the nested update document from st. Multi-select fields
// backed by a catalog become lists of {"value": id}; labels the catalog
// cannot resolve are left out, so callers check UnknownOptions first.
func Payload(shape *Shape, st State, cat Catalog) map[string]any {
	doc := map[string]any{}
	for _, f := range shape.fields {
		v := st.Values[f.Path]
		if list, ok := v.([]string); ok {
			v = slices.Clone(list)
		}
		if f.Kind == KindMultiSelect && f.Options != "" {
			refs := []map[string]any{}
			for _, label := range st.Strings(f.Path) {
				if id, ok := cat.Value(f.Options, label); ok {
					refs = append(refs, map[string]any{"value": id})
				}
			}
			v = refs
		}
		assign(doc, f.Path, v)
	}
	return doc
}

// UnknownOptions returns, per catalog-backed multi-select path, the selected
// labels that resolve to no option. It is nil when every choice resolves.
func UnknownOptions(shape *Shape, st State, cat Catalog) map[string][]string {
	var out map[string][]string
	for _, f := range shape.fields {
		if f.Kind != KindMultiSelect || f.Options == "" {
			continue
		}
		for _, label := range st.Strings(f.Path) {
			if _, ok := cat.Value(f.Options, label); ok {
				continue
			}
			if out == nil {
				out = map[string][]string{}
			}
			out[f.Path] = append(out[f.Path], label)
		}
	}
	return out
}
