package profiles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/symbiobot/internal/schema"
)

// Credentials is a loosely typed set of field values, as produced by a
// parsed sign-up form or a decoded record.
type Credentials map[string]any

// NormalizeList accepts a comma-separated string or a ready collection and
// returns a deduplicated, order-preserving list of trimmed values.
func NormalizeList(field string, v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		return dedupe(splitList(t, ",")), nil
	case []string:
		return dedupe(trimAll(t)), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return dedupe(trimAll(out)), nil
	}
	return nil, &ValidationError{Field: field, Want: schema.KindList, Got: fmt.Sprintf("%T", v)}
}

// Coerce converts raw user text into the typed value a field holds.
// Numeric fields must parse as integers.
func Coerce(f schema.Field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case schema.KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		// 0 is the unset sentinel, so a required field cannot hold it.
		if err != nil || (f.Required && f.IsEmpty(n)) {
			return nil, &ValidationError{Field: f.Name, Want: schema.KindInt, Input: raw}
		}
		return n, nil
	case schema.KindList:
		if raw == "" {
			return nil, &ValidationError{Field: f.Name, Want: schema.KindList, Input: raw}
		}
		return raw, nil
	default:
		if raw == "" {
			return nil, &ValidationError{Field: f.Name, Want: schema.KindString, Input: raw}
		}
		return raw, nil
	}
}

var labelSep = regexp.MustCompile(`\s*:\s*`)

// ParseCredentials reads a "label : value" form, one field per line.
// Labels are mapped back to field names through the schema; values holding
// ',' or '+' become lists and pure digits become integers. It returns nil
// if no known label was found.
func ParseCredentials(text string, s *schema.Schema) Credentials {
	byLabel := s.LabelIndex()
	text = labelSep.ReplaceAllString(text, ":")

	out := Credentials{}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name, known := byLabel[strings.TrimSpace(key)]
		if !known {
			if _, isField := s.Lookup(strings.TrimSpace(key)); !isField {
				continue
			}
			name = strings.TrimSpace(key)
		}
		out[name] = convertValue(strings.TrimSpace(value))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func convertValue(v string) any {
	if strings.ContainsAny(v, ",+") {
		parts := splitList(v, ",+")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, convertValue(p))
		}
		return out
	}
	if isDigits(v) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return v
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func splitList(s, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) })
	return trimAll(parts)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
