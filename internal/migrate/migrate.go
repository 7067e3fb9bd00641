// Package migrate rewrites stored profile records field by field. It works
// on the raw JSON of each record so fields unknown to the current schema
// survive a rewrite.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
)

// Op changes one decoded record in place and reports whether it did.
type Op func(fields map[string]json.RawMessage) bool

// ParseValue reads s as JSON, falling back to a plain string.
func ParseValue(s string) json.RawMessage {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

// AddKey sets key to value on every record.
func AddKey(key string, value json.RawMessage) Op {
	return func(fields map[string]json.RawMessage) bool {
		fields[key] = value
		return true
	}
}

// EditKey sets key to value on records that already have it.
func EditKey(key string, value json.RawMessage) Op {
	return func(fields map[string]json.RawMessage) bool {
		if _, ok := fields[key]; !ok {
			return false
		}
		fields[key] = value
		return true
	}
}

// RenameKey moves the value of from to to. An existing to is overwritten.
func RenameKey(from, to string) Op {
	return func(fields map[string]json.RawMessage) bool {
		v, ok := fields[from]
		if !ok || from == to {
			return false
		}
		delete(fields, from)
		fields[to] = v
		return true
	}
}

// DeleteKey removes key from every record that has it.
func DeleteKey(key string) Op {
	return func(fields map[string]json.RawMessage) bool {
		if _, ok := fields[key]; !ok {
			return false
		}
		delete(fields, key)
		return true
	}
}

// Apply runs op over every record in repo and writes the changed ones back
// in a single batch. It returns how many records changed.
func Apply(ctx context.Context, repo records.Repository, op Op) (int, error) {
	recs, err := repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	var changed []records.Record
	for _, r := range recs {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(r.Value, &fields); err != nil {
			return 0, fmt.Errorf("decode record %s: %w", r.Key, err)
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
		if !op(fields) {
			continue
		}
		b, err := json.Marshal(fields)
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", r.Key, err)
		}
		changed = append(changed, records.Record{Key: r.Key, Value: b})
	}

	if len(changed) == 0 {
		return 0, nil
	}
	if err := repo.SetMany(ctx, changed); err != nil {
		return 0, fmt.Errorf("write records: %w", err)
	}
	return len(changed), nil
}

// Show writes every record as indented JSON, keyed by record key.
func Show(ctx context.Context, repo records.Repository, w io.Writer) error {
	recs, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	for _, r := range recs {
		var v any
		if err := json.Unmarshal(r.Value, &v); err != nil {
			return fmt.Errorf("decode record %s: %w", r.Key, err)
		}
		b, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s:\n  %s\n", r.Key, b); err != nil {
			return err
		}
	}
	return nil
}
