package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/symbiobot/internal/common"
)

// JSONFileRepository stores every record in a single JSON object on disk.
// Object member order is the insertion order. Every write rewrites the file
// through a temporary sibling and a rename.
type JSONFileRepository struct {
	mu   sync.Mutex
	path string
}

func NewJSONFileRepository(path string) *JSONFileRepository {
	return &JSONFileRepository{path: path}
}

func (r *JSONFileRepository) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.read()
	if err != nil {
		return nil, err
	}
	if i := indexOf(recs, key); i >= 0 {
		return recs[i].Value, nil
	}
	return nil, common.ErrorNotFound
}

func (r *JSONFileRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.SetMany(ctx, []Record{{Key: key, Value: value}})
}

func (r *JSONFileRepository) SetMany(ctx context.Context, batch []Record) error {
	for _, rec := range batch {
		if !json.Valid(rec.Value) {
			return fmt.Errorf("record %q: %w", rec.Key, common.ErrorValidation)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.read()
	if err != nil {
		return err
	}
	for _, rec := range batch {
		if i := indexOf(recs, rec.Key); i >= 0 {
			recs[i].Value = rec.Value
		} else {
			recs = append(recs, rec)
		}
	}
	return r.write(recs)
}

func (r *JSONFileRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.read()
	if err != nil {
		return err
	}
	i := indexOf(recs, key)
	if i < 0 {
		return nil
	}
	recs = append(recs[:i], recs[i+1:]...)
	return r.write(recs)
}

func (r *JSONFileRepository) List(ctx context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func indexOf(recs []Record, key string) int {
	for i := range recs {
		if recs[i].Key == key {
			return i
		}
	}
	return -1
}

// read decodes the document member by member so the on-disk order survives.
// A missing or empty file is an empty store.
func (r *JSONFileRepository) read() ([]Record, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("decode %s: expected object", r.path)
	}

	var recs []Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.path, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode %s: unexpected token %v", r.path, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.path, err)
		}
		recs = append(recs, Record{Key: key, Value: []byte(raw)})
	}
	return recs, nil
}

func (r *JSONFileRepository) write(recs []Record) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, rec := range recs {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		k, err := json.Marshal(rec.Key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteString(": ")
		if err := json.Indent(&buf, rec.Value, "  ", "  "); err != nil {
			return fmt.Errorf("record %q: %w", rec.Key, err)
		}
	}
	if len(recs) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
