// Package schema describes the ordered set of credential fields a profile
// is made of. The schema is built once at startup and shared read-only by
// the profile store and the step flow controller.
package schema

import (
	"fmt"
)

// Kind is the value type a field accepts.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps the textual kind used in resource files to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "string", "str":
		return KindString, nil
	case "int", "integer":
		return KindInt, nil
	case "list", "multi":
		return KindList, nil
	}
	return 0, fmt.Errorf("unknown field kind %q", s)
}

// Field is one credential field.
type Field struct {
	Name  string
	Label string
	Kind  Kind
	// Choices names the option list offered as buttons; empty means free text only.
	Choices  string
	Required bool
}

// Multi reports whether the field holds a collection of values.
func (f Field) Multi() bool { return f.Kind == KindList }

// Choosable reports whether the field offers a pick-list.
func (f Field) Choosable() bool { return f.Choices != "" }

// Empty returns the sentinel an unset field holds.
func (f Field) Empty() any {
	switch f.Kind {
	case KindInt:
		return int64(0)
	case KindList:
		return []string{}
	default:
		return ""
	}
}

// IsEmpty reports whether v equals the field's sentinel.
func (f Field) IsEmpty(v any) bool {
	switch f.Kind {
	case KindInt:
		n, ok := v.(int64)
		return !ok || n == 0
	case KindList:
		l, ok := v.([]string)
		return !ok || len(l) == 0
	default:
		s, ok := v.(string)
		return !ok || s == ""
	}
}

// Schema is an ordered, immutable list of fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New validates fields and builds a Schema. Field names must be unique and
// non-empty; multi-valued fields cannot be required.
func New(fields []Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if f.Multi() && f.Required {
			return nil, fmt.Errorf("multi-valued field %q cannot be required", f.Name)
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// MustNew is New that panics on error; meant for package-level defaults.
func MustNew(fields []Field) *Schema {
	s, err := New(fields)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Len() int { return len(s.fields) }

// At returns the field at step i.
func (s *Schema) At(i int) Field { return s.fields[i] }

// Fields returns a copy of the ordered fields.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Index returns the step position of name, or -1.
func (s *Schema) Index(name string) int {
	i, ok := s.index[name]
	if !ok {
		return -1
	}
	return i
}

// Required returns the fields that must be set for a profile to be complete.
func (s *Schema) Required() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// LabelIndex maps display labels back to field names.
func (s *Schema) LabelIndex() map[string]string {
	m := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		m[f.Label] = f.Name
	}
	return m
}

// Default is the club registration form.
func Default() *Schema {
	return MustNew([]Field{
		{Name: "first_name", Label: "First name", Kind: KindString, Required: true},
		{Name: "last_name", Label: "Last name", Kind: KindString, Required: true},
		{Name: "study_field", Label: "Field of study", Kind: KindString, Choices: "study_fields", Required: true},
		{Name: "student_id", Label: "Student ID", Kind: KindInt, Required: true},
		{Name: "degree", Label: "Degree", Kind: KindString, Choices: "degrees", Required: true},
		{Name: "university", Label: "University", Kind: KindString, Choices: "universities", Required: true},
		{Name: "email", Label: "Email", Kind: KindString, Required: true},
		{Name: "phone_number", Label: "Phone number", Kind: KindInt, Required: true},
		{Name: "interests", Label: "Interests", Kind: KindList, Choices: "interests"},
		{Name: "skills", Label: "Skills", Kind: KindList, Choices: "skills"},
	})
}
