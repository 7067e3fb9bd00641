// Package resources loads the bot's text resources: field definitions,
// option lists, prompt templates, button labels, browseable content, the
// duplicate-detection weights and the rich-text tag map. A default set is
// embedded; a YAML or JSON file may replace it.
package resources

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/richtext"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// FieldDef is the file form of a schema field.
type FieldDef struct {
	Name     string `yaml:"name" json:"name"`
	Label    string `yaml:"label" json:"label"`
	Kind     string `yaml:"kind" json:"kind"`
	Choices  string `yaml:"choices,omitempty" json:"choices,omitempty"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// Item is one piece of browseable content.
type Item struct {
	Title string `yaml:"title" json:"title"`
	Text  string `yaml:"text" json:"text"`
}

// Category groups content items.
type Category struct {
	Key   string `yaml:"key" json:"key"`
	Title string `yaml:"title" json:"title"`
	Items []Item `yaml:"items" json:"items"`
}

type document struct {
	Fields   []FieldDef              `yaml:"fields" json:"fields"`
	Options  map[string][]string     `yaml:"options" json:"options"`
	Weights  []profiles.Weight       `yaml:"uniqueness_weights" json:"uniqueness_weights"`
	Tags     map[string]richtext.Tag `yaml:"tags" json:"tags"`
	Buttons  map[string]string       `yaml:"buttons" json:"buttons"`
	Messages map[string]string       `yaml:"messages" json:"messages"`
	Content  []Category              `yaml:"content" json:"content"`
}

// Resources is safe for concurrent use. Only content is mutable after
// loading.
type Resources struct {
	mu     sync.RWMutex
	doc    document
	path   string
	schema *schema.Schema
}

// Load reads resources from path. An empty path or a missing file yields
// the embedded defaults; a later Save writes to path when one was given.
func Load(path string) (*Resources, error) {
	data := defaultYAML
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = b
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read resources: %w", err)
		}
	}
	r, err := Parse(data)
	if err != nil {
		return nil, err
	}
	r.path = path
	return r, nil
}

// Default returns the embedded resources.
func Default() *Resources {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return r
}

// Parse decodes a YAML (or JSON) resources document. Sections missing from
// data fall back to the embedded defaults.
func Parse(data []byte) (*Resources, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode resources: %w", err)
	}

	var def document
	if err := yaml.Unmarshal(defaultYAML, &def); err != nil {
		return nil, fmt.Errorf("decode default resources: %w", err)
	}
	if len(doc.Fields) == 0 {
		doc.Fields = def.Fields
	}
	if doc.Options == nil {
		doc.Options = def.Options
	}
	if doc.Weights == nil {
		doc.Weights = def.Weights
	}
	if doc.Tags == nil {
		doc.Tags = def.Tags
	}
	doc.Buttons = merge(def.Buttons, doc.Buttons)
	doc.Messages = merge(def.Messages, doc.Messages)
	if doc.Content == nil {
		doc.Content = def.Content
	}

	fields := make([]schema.Field, 0, len(doc.Fields))
	for _, fd := range doc.Fields {
		k, err := schema.ParseKind(fd.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		fields = append(fields, schema.Field{
			Name: fd.Name, Label: fd.Label, Kind: k, Choices: fd.Choices, Required: fd.Required,
		})
	}
	s, err := schema.New(fields)
	if err != nil {
		return nil, err
	}
	return &Resources{doc: doc, schema: s}, nil
}

func merge(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (r *Resources) Schema() *schema.Schema { return r.schema }

func (r *Resources) Weights() []profiles.Weight { return r.doc.Weights }

func (r *Resources) Tags() map[string]richtext.Tag { return r.doc.Tags }

// Choices returns the option list named list.
func (r *Resources) Choices(list string) []string { return r.doc.Options[list] }

// Button returns the label of a button; unknown keys are returned as is.
func (r *Resources) Button(key string) string {
	if b, ok := r.doc.Buttons[key]; ok {
		return b
	}
	return key
}

// Format fills the {name} placeholders of template key with the given
// name/value pairs. Unknown keys are returned as is.
func (r *Resources) Format(key string, kv ...string) string {
	tmpl, ok := r.doc.Messages[key]
	if !ok {
		return key
	}
	return Fill(tmpl, kv...)
}

// Fill replaces {name} placeholders in tmpl.
func Fill(tmpl string, kv ...string) string {
	if len(kv) < 2 {
		return tmpl
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Categories returns a copy of the content categories.
func (r *Resources) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, len(r.doc.Content))
	for i, c := range r.doc.Content {
		c.Items = append([]Item(nil), c.Items...)
		out[i] = c
	}
	return out
}

// CategoryByTitle finds a category by its display title.
func (r *Resources) CategoryByTitle(title string) (Category, bool) {
	for _, c := range r.Categories() {
		if c.Title == title {
			return c, true
		}
	}
	return Category{}, false
}

// Item returns the content item title of category key.
func (r *Resources) Item(key, title string) (Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.doc.Content {
		if c.Key != key {
			continue
		}
		for _, it := range c.Items {
			if it.Title == title {
				return it, true
			}
		}
	}
	return Item{}, false
}

// SetItemText replaces the text of an existing content item.
func (r *Resources) SetItemText(key, title, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ci := range r.doc.Content {
		if r.doc.Content[ci].Key != key {
			continue
		}
		for ii := range r.doc.Content[ci].Items {
			if r.doc.Content[ci].Items[ii].Title == title {
				r.doc.Content[ci].Items[ii].Text = text
				return nil
			}
		}
	}
	return fmt.Errorf("content %s/%s: %w", key, title, common.ErrorNotFound)
}

// Save writes the current resources to the file they were loaded from.
func (r *Resources) Save() error {
	if r.path == "" {
		return fmt.Errorf("resources have no backing file: %w", common.ErrorPersistence)
	}
	r.mu.RLock()
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(r.path), ".json") {
		data, err = json.MarshalIndent(&r.doc, "", "  ")
	} else {
		data, err = yaml.Marshal(&r.doc)
	}
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode resources: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}
	return nil
}
