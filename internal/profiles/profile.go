// Package profiles holds the profile model and the profile store: lookup,
// creation with validation and duplicate detection, field-level mutation,
// and persistence through a record repository.
package profiles

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/symbiobot/internal/schema"
)

// Profile is one user's record of credential fields and status flags.
type Profile struct {
	UserID      int64    `json:"user_id"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	StudyField  string   `json:"study_field"`
	StudentID   int64    `json:"student_id"`
	Email       string   `json:"email"`
	PhoneNumber int64    `json:"phone_number"`
	Degree      string   `json:"degree"`
	University  string   `json:"university"`
	IsSignedUp  bool     `json:"is_signed_up"`
	IsVerified  bool     `json:"is_verified"`
	Skills      []string `json:"skills"`
	Interests   []string `json:"interests"`
	Scale       int      `json:"scale"`
	SelfReserve bool     `json:"self_reserve"`
}

// ScaleBounds limits the rendered border width.
type ScaleBounds struct {
	Min     int
	Max     int
	Default int
}

var DefaultScaleBounds = ScaleBounds{Min: 5, Max: 50, Default: 38}

type accessor struct {
	kind schema.Kind
	get  func(p *Profile) any
	set  func(p *Profile, v any)
}

var accessors = map[string]accessor{
	"first_name":   strField(func(p *Profile) *string { return &p.FirstName }),
	"last_name":    strField(func(p *Profile) *string { return &p.LastName }),
	"study_field":  strField(func(p *Profile) *string { return &p.StudyField }),
	"email":        strField(func(p *Profile) *string { return &p.Email }),
	"degree":       strField(func(p *Profile) *string { return &p.Degree }),
	"university":   strField(func(p *Profile) *string { return &p.University }),
	"student_id":   intField(func(p *Profile) *int64 { return &p.StudentID }),
	"phone_number": intField(func(p *Profile) *int64 { return &p.PhoneNumber }),
	"skills":       listField(func(p *Profile) *[]string { return &p.Skills }),
	"interests":    listField(func(p *Profile) *[]string { return &p.Interests }),
}

func strField(ptr func(*Profile) *string) accessor {
	return accessor{
		kind: schema.KindString,
		get:  func(p *Profile) any { return *ptr(p) },
		set:  func(p *Profile, v any) { *ptr(p) = v.(string) },
	}
}

func intField(ptr func(*Profile) *int64) accessor {
	return accessor{
		kind: schema.KindInt,
		get:  func(p *Profile) any { return *ptr(p) },
		set:  func(p *Profile, v any) { *ptr(p) = v.(int64) },
	}
}

func listField(ptr func(*Profile) *[]string) accessor {
	return accessor{
		kind: schema.KindList,
		get: func(p *Profile) any {
			l := *ptr(p)
			if l == nil {
				return []string{}
			}
			return l
		},
		set: func(p *Profile, v any) { *ptr(p) = v.([]string) },
	}
}

// CheckSchema verifies that every schema field maps onto a Profile
// attribute of the same kind.
func CheckSchema(s *schema.Schema) error {
	for _, f := range s.Fields() {
		a, ok := accessors[f.Name]
		if !ok {
			return fmt.Errorf("schema field %q has no profile attribute", f.Name)
		}
		if a.kind != f.Kind {
			return fmt.Errorf("schema field %q is %s, profile attribute is %s", f.Name, f.Kind, a.kind)
		}
	}
	return nil
}

// New returns a profile whose fields all hold their empty sentinels.
func New(userID int64, bounds ScaleBounds) *Profile {
	return &Profile{
		UserID:      userID,
		Skills:      []string{},
		Interests:   []string{},
		Scale:       bounds.Default,
		SelfReserve: true,
	}
}

// Value returns the current value of a credential field.
func (p *Profile) Value(field string) (any, bool) {
	a, ok := accessors[field]
	if !ok {
		return nil, false
	}
	return a.get(p), true
}

// SetValue replaces a credential field. v must already have the field's type.
func (p *Profile) SetValue(field string, v any) error {
	a, ok := accessors[field]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	if err := checkKind(field, a.kind, v); err != nil {
		return err
	}
	if a.kind == schema.KindList {
		v = dedupe(v.([]string))
	}
	a.set(p, v)
	return nil
}

// Values returns the collection held by a multi-valued field.
func (p *Profile) Values(field string) []string {
	a, ok := accessors[field]
	if !ok || a.kind != schema.KindList {
		return nil
	}
	return a.get(p).([]string)
}

// AppendValue adds v to a multi-valued field unless already present.
// It reports whether the collection changed.
func (p *Profile) AppendValue(field, v string) (bool, error) {
	a, ok := accessors[field]
	if !ok || a.kind != schema.KindList {
		return false, fmt.Errorf("field %q is not multi-valued", field)
	}
	cur := a.get(p).([]string)
	if slices.Contains(cur, v) {
		return false, nil
	}
	a.set(p, append(slices.Clone(cur), v))
	return true, nil
}

// ToggleValue removes v from a multi-valued field if present, adds it
// otherwise. It reports whether v is present afterwards.
func (p *Profile) ToggleValue(field, v string) (bool, error) {
	a, ok := accessors[field]
	if !ok || a.kind != schema.KindList {
		return false, fmt.Errorf("field %q is not multi-valued", field)
	}
	cur := a.get(p).([]string)
	if i := slices.Index(cur, v); i >= 0 {
		a.set(p, slices.Delete(slices.Clone(cur), i, i+1))
		return false, nil
	}
	a.set(p, append(slices.Clone(cur), v))
	return true, nil
}

// IsComplete reports whether every required field differs from its sentinel.
// It is evaluated on every call, never cached.
func (p *Profile) IsComplete(s *schema.Schema) bool {
	for _, f := range s.Required() {
		v, ok := p.Value(f.Name)
		if !ok || f.IsEmpty(v) {
			return false
		}
	}
	return true
}

// Missing lists the labels of required fields that are still unset.
func (p *Profile) Missing(s *schema.Schema) []string {
	var out []string
	for _, f := range s.Required() {
		v, ok := p.Value(f.Name)
		if !ok || f.IsEmpty(v) {
			out = append(out, f.Label)
		}
	}
	return out
}

// AdjustScale moves the border width one step and clamps it to b.
func (p *Profile) AdjustScale(up bool, b ScaleBounds) int {
	if up {
		p.Scale = min(p.Scale+1, b.Max)
	} else {
		p.Scale = max(p.Scale-1, b.Min)
	}
	return p.Scale
}

func (p *Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Skills = slices.Clone(p.Skills)
	c.Interests = slices.Clone(p.Interests)
	if c.Skills == nil {
		c.Skills = []string{}
	}
	if c.Interests == nil {
		c.Interests = []string{}
	}
	return &c
}

func checkKind(field string, kind schema.Kind, v any) error {
	ok := false
	switch kind {
	case schema.KindString:
		_, ok = v.(string)
	case schema.KindInt:
		_, ok = v.(int64)
	case schema.KindList:
		_, ok = v.([]string)
	}
	if !ok {
		return &ValidationError{Field: field, Want: kind, Got: fmt.Sprintf("%T", v)}
	}
	return nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
