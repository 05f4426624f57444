// Package form holds the in-memory state of an edit session and the pure
// reducer that evolves it.
//
// Field paths are dot-addressed ("address.city"). A Shape declares the paths
// a form edits; every State built from a Shape carries each of them in its
// Values, Touched and Errors maps.
package form

// Kind is the input kind of a field.
type Kind string

const (
	KindText        Kind = "text"
	KindDate        Kind = "date"
	KindEmail       Kind = "email"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multiselect"
)

// Field declares one editable path.
type Field struct {
	Path  string `json:"path"`
	Kind  Kind   `json:"kind"`
	Label string `json:"label"`
	// Options names the collection whose documents are the choices of a
	// select/multiselect field. Multi-select values hold labels; the payload
	// maps them back to {"value": id} references.
	Options string `json:"options,omitempty"`
	// Enum names a static enumeration for select fields.
	Enum string `json:"enum,omitempty"`
}

// Zero is the neutral value of the field.
func (f Field) Zero() any {
	if f.Kind == KindMultiSelect {
		return []string{}
	}
	return ""
}

// Shape is the ordered set of declared fields.
type Shape struct {
	fields []Field
	index  map[string]int
}

// NewShape declares fields in order. A repeated path keeps its first declaration.
func NewShape(fields ...Field) *Shape {
	s := &Shape{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if _, dup := s.index[f.Path]; dup {
			continue
		}
		if f.Kind == "" {
			f.Kind = KindText
		}
		s.index[f.Path] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Fields returns the declared fields in order.
func (s *Shape) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a declared path.
func (s *Shape) Field(path string) (Field, bool) {
	i, ok := s.index[path]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether path is declared.
func (s *Shape) Has(path string) bool {
	_, ok := s.index[path]
	return ok
}

// OptionCollections lists the collections referenced by option fields.
func (s *Shape) OptionCollections() []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range s.fields {
		if f.Options == "" || seen[f.Options] {
			continue
		}
		seen[f.Options] = true
		out = append(out, f.Options)
	}
	return out
}
