// Package formdef compiles the CUE form definitions embedded in the binary
// into runtime form shapes, validation schemas and navigation tables.
//
// Each form lives under forms.<name> and declares its editable fields as a
// CUE struct. Leaf fields carry an @field(...) attribute:
//
//	label       display label
//	kind        text | date | email | select | multiselect (lists default to multiselect)
//	required    message shown when the field is empty
//	invalid     message for date/email/enum/pattern failures
//	options     collection whose documents are the choices
//	enum        static enumeration name (see types.Enums)
//	min         minimum selections of a multiselect
//	minMessage  message shown below min
//	pattern     regular expression the value must match
package formdef

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/agrodata/agroadmin/internal/form"
	"github.com/agrodata/agroadmin/internal/navigation"
	"github.com/agrodata/agroadmin/internal/types"
	"github.com/agrodata/agroadmin/internal/validate"
)

//go:embed cue/*.cue
var embedded embed.FS

const (
	defaultFailure      = "Falha inesperada! Erro: {status}"
	defaultDateInvalid  = "Data inválida!"
	defaultEmailInvalid = "E-mail inválido!"
	defaultEnumInvalid  = "Opção inválida!"
)

// FieldSpec is the declarative description of one field, kept for export.
type FieldSpec struct {
	form.Field
	Required   string `json:"required,omitempty"`
	Invalid    string `json:"invalid,omitempty"`
	MinItems   int    `json:"min_items,omitempty"`
	MinMessage string `json:"min_message,omitempty"`
	Pattern    string `json:"pattern,omitempty"`
}

// Definition is a compiled edit form.
type Definition struct {
	Name           string
	Title          string
	Collection     string
	SuccessMessage string
	FailureMessage string
	// StampActor, when set, is the payload key that receives the acting user id.
	StampActor string
	Specs      []FieldSpec
	Shape      *form.Shape
	Rules      *validate.Schema
	Routes     navigation.Routes
	// Locked lists, per path, the roles that may not change it.
	Locked map[string][]types.Role
}

// FailureText renders the failure message for a status (or error text).
func (d *Definition) FailureText(status string) string {
	return strings.ReplaceAll(d.FailureMessage, "{status}", status)
}

// IsLocked reports whether role may not edit path.
func (d *Definition) IsLocked(path string, role types.Role) bool {
	for _, r := range d.Locked[path] {
		if r == role {
			return true
		}
	}
	return false
}

// InvalidMessage returns the invalid-value message declared for path, or the
// generic option message.
func (d *Definition) InvalidMessage(path string) string {
	for _, s := range d.Specs {
		if s.Path == path && s.Invalid != "" {
			return s.Invalid
		}
	}
	return defaultEnumInvalid
}

// Registry holds compiled definitions by name.
type Registry struct {
	defs map[string]*Definition
}

// Get returns the named definition.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the form names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load compiles the embedded definitions.
func Load() (*Registry, error) {
	return LoadFS(embedded, "cue")
}

// LoadFS compiles every .cue file in dir of fsys.
func LoadFS(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading form definitions: %w", err)
	}
	sources := map[string][]byte{}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".cue" {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		sources[e.Name()] = b
	}
	return Parse(sources)
}

// Parse compiles and unifies the given CUE sources.
func Parse(sources map[string][]byte) (*Registry, error) {
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	sort.Strings(names)

	ctx := cuecontext.New()
	var root cue.Value
	for i, name := range names {
		v := ctx.CompileBytes(sources[name], cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compiling %s: %w", name, err)
		}
		if i == 0 {
			root = v
		} else {
			root = root.Unify(v)
		}
	}
	if len(names) == 0 {
		return &Registry{defs: map[string]*Definition{}}, nil
	}
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("unifying form definitions: %w", err)
	}

	reg := &Registry{defs: map[string]*Definition{}}
	formsVal := root.LookupPath(cue.ParsePath("forms"))
	if !formsVal.Exists() {
		return reg, nil
	}
	iter, err := formsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("listing forms: %w", err)
	}
	for iter.Next() {
		def, err := parseForm(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		reg.defs[def.Name] = def
	}
	return reg, nil
}

func lookupString(v cue.Value, p string) string {
	f := v.LookupPath(cue.ParsePath(p))
	if !f.Exists() {
		return ""
	}
	s, _ := f.String()
	return s
}

func parseForm(name string, v cue.Value) (*Definition, error) {
	def := &Definition{
		Name:           name,
		Title:          lookupString(v, "title"),
		Collection:     lookupString(v, "collection"),
		SuccessMessage: lookupString(v, "success"),
		FailureMessage: lookupString(v, "failure"),
		StampActor:     lookupString(v, "stampActor"),
		Locked:         map[string][]types.Role{},
	}
	if def.Collection == "" {
		return nil, fmt.Errorf("form %s: collection is required", name)
	}
	if def.FailureMessage == "" {
		def.FailureMessage = defaultFailure
	}

	def.Routes = navigation.Routes{
		Default: lookupString(v, "navigation.default"),
		ByRole:  map[types.Role]string{},
	}
	if roles := v.LookupPath(cue.ParsePath("navigation.roles")); roles.Exists() {
		it, err := roles.List()
		if err != nil {
			return nil, fmt.Errorf("form %s: navigation.roles: %w", name, err)
		}
		for it.Next() {
			role, err := it.Value().LookupPath(cue.ParsePath("role")).Int64()
			if err != nil {
				return nil, fmt.Errorf("form %s: navigation role: %w", name, err)
			}
			def.Routes.ByRole[types.Role(role)] = lookupString(it.Value(), "path")
		}
	}

	if locked := v.LookupPath(cue.ParsePath("locked")); locked.Exists() {
		it, err := locked.List()
		if err != nil {
			return nil, fmt.Errorf("form %s: locked: %w", name, err)
		}
		for it.Next() {
			p := lookupString(it.Value(), "path")
			rit, err := it.Value().LookupPath(cue.ParsePath("roles")).List()
			if err != nil {
				return nil, fmt.Errorf("form %s: locked %s: %w", name, p, err)
			}
			for rit.Next() {
				r, err := rit.Value().Int64()
				if err != nil {
					return nil, fmt.Errorf("form %s: locked %s: %w", name, p, err)
				}
				def.Locked[p] = append(def.Locked[p], types.Role(r))
			}
		}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, fmt.Errorf("form %s: fields are required", name)
	}
	if err := collectFields(fieldsVal, "", &def.Specs); err != nil {
		return nil, fmt.Errorf("form %s: %w", name, err)
	}

	fields := make([]form.Field, len(def.Specs))
	for i, s := range def.Specs {
		fields[i] = s.Field
	}
	def.Shape = form.NewShape(fields...)

	rules, err := buildRules(def.Specs)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", name, err)
	}
	def.Rules = rules
	return def, nil
}

// collectFields walks the fields struct depth-first, flattening nested
// structs into dot paths.
func collectFields(v cue.Value, prefix string, out *[]FieldSpec) error {
	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return err
	}
	for iter.Next() {
		label := iter.Selector().String()
		p := label
		if prefix != "" {
			p = prefix + "." + label
		}
		fv := iter.Value()
		if fv.IncompleteKind() == cue.StructKind {
			if err := collectFields(fv, p, out); err != nil {
				return err
			}
			continue
		}
		spec, err := parseLeaf(p, fv)
		if err != nil {
			return err
		}
		*out = append(*out, spec)
	}
	return nil
}

func parseLeaf(p string, v cue.Value) (FieldSpec, error) {
	spec := FieldSpec{Field: form.Field{Path: p, Kind: form.KindText}}
	if v.IncompleteKind() == cue.ListKind {
		spec.Kind = form.KindMultiSelect
	}

	a := v.Attribute("field")
	if a.Err() != nil {
		return spec, nil
	}
	get := func(key string) string {
		s, _, _ := a.Lookup(0, key)
		return s
	}
	if k := get("kind"); k != "" {
		spec.Kind = form.Kind(k)
	}
	spec.Label = get("label")
	spec.Options = get("options")
	spec.Enum = get("enum")
	spec.Required = get("required")
	spec.Invalid = get("invalid")
	spec.MinMessage = get("minMessage")
	spec.Pattern = get("pattern")
	if m := get("min"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return spec, fmt.Errorf("field %s: min %q: %w", p, m, err)
		}
		spec.MinItems = n
	}
	if spec.Enum != "" {
		if _, ok := types.Enums[spec.Enum]; !ok {
			return spec, fmt.Errorf("field %s: unknown enum %q", p, spec.Enum)
		}
	}
	return spec, nil
}

func buildRules(specs []FieldSpec) (*validate.Schema, error) {
	s := validate.NewSchema()
	for _, spec := range specs {
		var rules []validate.Rule
		if spec.Required != "" {
			rules = append(rules, validate.Required(spec.Required))
		}
		switch spec.Kind {
		case form.KindDate:
			rules = append(rules, validate.Date(orDefault(spec.Invalid, defaultDateInvalid)))
		case form.KindEmail:
			rules = append(rules, validate.Email(orDefault(spec.Invalid, defaultEmailInvalid)))
		case form.KindMultiSelect:
			if spec.MinItems > 0 {
				rules = append(rules, validate.MinItems(spec.MinItems, spec.MinMessage))
			}
		}
		if spec.Enum != "" {
			rules = append(rules, validate.OneOf(types.EnumValues(spec.Enum), orDefault(spec.Invalid, defaultEnumInvalid)))
		}
		if spec.Pattern != "" {
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %s: pattern: %w", spec.Path, err)
			}
			rules = append(rules, validate.Pattern(re, spec.Invalid))
		}
		if len(rules) > 0 {
			s.Field(spec.Path, rules...)
		}
	}
	return s, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
