// Package validate provides composable, declarative form validation.
//
// A Schema maps field paths to ordered rules. Each rule is a pure function of
// the field's value; cross-field rules see the whole value map. Validation is
// deterministic: the same values always yield the same Result.
package validate

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// Result maps a field path to its error message. Valid paths have no entry.
type Result map[string]string

// Valid reports whether no path failed.
func (r Result) Valid() bool { return len(r) == 0 }

// Rule checks a single value. It returns the message and true when the value fails.
type Rule func(v any) (string, bool)

// CrossRule checks a path against the whole value map.
type CrossRule struct {
	Path  string
	Check func(values map[string]any) (string, bool)
}

// Schema is a set of per-path rules plus cross-field rules.
type Schema struct {
	order []string
	rules map[string][]Rule
	cross []CrossRule
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{rules: make(map[string][]Rule)}
}

// Field appends rules for path. Rules run in declaration order.
func (s *Schema) Field(path string, rules ...Rule) *Schema {
	if _, ok := s.rules[path]; !ok {
		s.order = append(s.order, path)
	}
	s.rules[path] = append(s.rules[path], rules...)
	return s
}

// Cross adds a rule evaluated over every value.
func (s *Schema) Cross(path string, check func(values map[string]any) (string, bool)) *Schema {
	s.cross = append(s.cross, CrossRule{Path: path, Check: check})
	return s
}

// Paths returns the paths that carry at least one rule.
func (s *Schema) Paths() []string {
	out := slices.Clone(s.order)
	for _, c := range s.cross {
		if !slices.Contains(out, c.Path) {
			out = append(out, c.Path)
		}
	}
	return out
}

// Validate runs every rule. The first failing rule of a path wins; a cross
// rule only reports when the path's own rules passed.
func (s *Schema) Validate(values map[string]any) Result {
	res := Result{}
	for _, path := range s.order {
		v := values[path]
		for _, rule := range s.rules[path] {
			if msg, failed := rule(v); failed {
				res[path] = msg
				break
			}
		}
	}
	for _, c := range s.cross {
		if _, done := res[c.Path]; done {
			continue
		}
		if msg, failed := c.Check(values); failed {
			res[c.Path] = msg
		}
	}
	return res
}

// ── Rules ────────────────────────────────────────────────────────────────────

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Required fails on nil, "" and empty lists.
func Required(msg string) Rule {
	return func(v any) (string, bool) {
		return msg, isEmpty(v)
	}
}

// Email fails when a non-empty value is not an e-mail address.
func Email(msg string) Rule {
	return func(v any) (string, bool) {
		if isEmpty(v) {
			return "", false
		}
		s, ok := asString(v)
		return msg, !ok || !govalidator.IsEmail(strings.TrimSpace(s))
	}
}

// dateLayouts are the accepted shapes for a date input.
var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// Date fails when a non-empty value does not parse as a date.
func Date(msg string) Rule {
	return func(v any) (string, bool) {
		if isEmpty(v) {
			return "", false
		}
		s, ok := asString(v)
		if !ok {
			return msg, true
		}
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return "", false
			}
		}
		return msg, true
	}
}

// MinItems fails when a list holds fewer than n entries. A missing list counts as empty.
func MinItems(n int, msg string) Rule {
	return func(v any) (string, bool) {
		switch x := v.(type) {
		case []string:
			return msg, len(x) < n
		case []any:
			return msg, len(x) < n
		case nil:
			return msg, n > 0
		}
		return msg, true
	}
}

// OneOf fails when a non-empty value is outside allowed.
func OneOf(allowed []string, msg string) Rule {
	return func(v any) (string, bool) {
		if isEmpty(v) {
			return "", false
		}
		s, ok := asString(v)
		return msg, !ok || !slices.Contains(allowed, s)
	}
}

// Pattern fails when a non-empty value does not match re.
func Pattern(re *regexp.Regexp, msg string) Rule {
	return func(v any) (string, bool) {
		if isEmpty(v) {
			return "", false
		}
		s, ok := asString(v)
		return msg, !ok || !re.MatchString(s)
	}
}
