package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/logging"
	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
)

// DuplicateThreshold is the accumulated weight at which two credential sets
// are treated as the same identity.
const DuplicateThreshold = 1.0

// Weight is the contribution of one matching attribute to a duplicate score.
type Weight struct {
	Field  string  `yaml:"field" json:"field"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// DefaultWeights lets any one strong identity field reach the threshold on
// its own, while name parts need help from other attributes.
var DefaultWeights = []Weight{
	{Field: "student_id", Weight: 1.0},
	{Field: "email", Weight: 1.0},
	{Field: "phone_number", Weight: 1.0},
	{Field: "first_name", Weight: 0.25},
	{Field: "last_name", Weight: 0.25},
	{Field: "university", Weight: 0.15},
	{Field: "study_field", Weight: 0.15},
	{Field: "degree", Weight: 0.1},
}

// StoreConfig carries the collaborators of a Store.
type StoreConfig struct {
	Schema  *schema.Schema
	Repo    records.Repository
	Weights []Weight
	Bounds  ScaleBounds
	Logger  logging.Logger
}

// Store owns every Profile in the process. Callers receive copies; all
// mutation goes through AddProfile, DeleteProfile and Update.
type Store struct {
	mu       sync.RWMutex
	schema   *schema.Schema
	repo     records.Repository
	weights  []Weight
	bounds   ScaleBounds
	log      logging.Logger
	profiles map[int64]*Profile
	order    []int64
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Schema == nil {
		return nil, errors.New("profile store: schema is required")
	}
	if err := CheckSchema(cfg.Schema); err != nil {
		return nil, err
	}
	if cfg.Repo == nil {
		return nil, errors.New("profile store: repository is required")
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights
	}
	for _, w := range cfg.Weights {
		if _, ok := accessors[w.Field]; !ok {
			return nil, fmt.Errorf("profile store: weight for unknown field %q", w.Field)
		}
	}
	if cfg.Bounds == (ScaleBounds{}) {
		cfg.Bounds = DefaultScaleBounds
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Store{
		schema:   cfg.Schema,
		repo:     cfg.Repo,
		weights:  cfg.Weights,
		bounds:   cfg.Bounds,
		log:      cfg.Logger,
		profiles: make(map[int64]*Profile),
	}, nil
}

// Key is the durable record key for a user id.
func Key(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Store) Schema() *schema.Schema { return s.schema }

func (s *Store) Bounds() ScaleBounds { return s.bounds }

// Load replaces the in-memory contents with the records held by the
// repository, keeping the repository's order. Attributes missing from a
// record keep the defaults of an empty profile.
func (s *Store) Load(ctx context.Context) error {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w: %w", common.ErrorPersistence, err)
	}

	profiles := make(map[int64]*Profile, len(recs))
	order := make([]int64, 0, len(recs))
	for _, rec := range recs {
		id, err := strconv.ParseInt(rec.Key, 10, 64)
		if err != nil {
			s.log.Warn(ctx, "skipping record with non-numeric key", "key", rec.Key)
			continue
		}
		p := New(id, s.bounds)
		if err := json.Unmarshal(rec.Value, p); err != nil {
			s.log.Warn(ctx, "skipping undecodable record", "key", rec.Key, "error", err)
			continue
		}
		p.UserID = id
		p.Skills = normalizeStored(p.Skills)
		p.Interests = normalizeStored(p.Interests)
		p.Scale = min(max(p.Scale, s.bounds.Min), s.bounds.Max)
		if _, dup := profiles[id]; !dup {
			order = append(order, id)
		}
		profiles[id] = p
	}

	s.mu.Lock()
	s.profiles = profiles
	s.order = order
	s.mu.Unlock()

	s.log.Info(ctx, "profiles loaded", "count", len(order))
	return nil
}

func normalizeStored(l []string) []string {
	if l == nil {
		return []string{}
	}
	return dedupe(l)
}

// Get returns a copy of the profile for id.
func (s *Store) Get(id int64) (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// AddProfile inserts a new profile for id. With createEmpty the profile holds
// only empty sentinels and creds must be nil; otherwise creds are normalized,
// type-checked and checked for duplicates first.
func (s *Store) AddProfile(id int64, creds Credentials, createEmpty bool) (*Profile, error) {
	if createEmpty && creds != nil {
		return nil, fmt.Errorf("credentials given with createEmpty: %w", common.ErrorConflictingRequest)
	}
	if !createEmpty && creds == nil {
		return nil, fmt.Errorf("credentials required unless createEmpty: %w", common.ErrorConflictingRequest)
	}

	var p *Profile
	if createEmpty {
		p = New(id, s.bounds)
	} else {
		built, err := s.fromCredentials(id, creds)
		if err != nil {
			return nil, err
		}
		p = built
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[id]; exists {
		return nil, fmt.Errorf("profile %d: %w", id, common.ErrorAlreadyExists)
	}
	if !createEmpty && s.duplicateLocked(creds, id) {
		return nil, fmt.Errorf("credentials match an existing profile: %w", common.ErrorAlreadyExists)
	}
	s.profiles[id] = p
	s.order = append(s.order, id)
	return p.Clone(), nil
}

// fromCredentials normalizes creds in place and builds a profile from them.
func (s *Store) fromCredentials(id int64, creds Credentials) (*Profile, error) {
	for _, f := range s.schema.Fields() {
		if !f.Multi() {
			continue
		}
		l, err := NormalizeList(f.Name, creds[f.Name])
		if err != nil {
			return nil, err
		}
		creds[f.Name] = l
	}

	p := New(id, s.bounds)
	for _, f := range s.schema.Fields() {
		v, ok := creds[f.Name]
		if !ok {
			if f.Required {
				return nil, &ValidationError{Field: f.Name, Want: f.Kind, Got: "nothing"}
			}
			continue
		}
		v = integral(f.Kind, v)
		creds[f.Name] = v
		if err := p.SetValue(f.Name, v); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// integral widens whole numbers of other Go types to int64 for int fields.
func integral(k schema.Kind, v any) any {
	if k != schema.KindInt {
		return v
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		if n == math.Trunc(n) {
			return int64(n)
		}
	}
	return v
}

// DeleteProfile removes id from memory and reports whether it existed.
// Call Save afterwards to drop the durable record.
func (s *Store) DeleteProfile(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return false
	}
	delete(s.profiles, id)
	s.order = slices.DeleteFunc(s.order, func(v int64) bool { return v == id })
	return true
}

// Save writes the current profile for id to the repository, or removes the
// durable record when the profile no longer exists. It is idempotent.
func (s *Store) Save(ctx context.Context, id int64) error {
	s.mu.RLock()
	p, ok := s.profiles[id]
	var data []byte
	var err error
	if ok {
		data, err = json.Marshal(p)
	}
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode profile %d: %w", id, err)
	}

	if !ok {
		err = s.repo.Delete(ctx, Key(id))
	} else {
		err = s.repo.Set(ctx, Key(id), data)
	}
	if err != nil {
		s.log.Error(ctx, "profile save failed", "user_id", id, "error", err)
		return fmt.Errorf("save profile %d: %w: %w", id, common.ErrorPersistence, err)
	}
	return nil
}

// Update applies fn to a copy of the profile for id, stores the result when
// fn succeeds and then saves it. The returned profile reflects the update
// even when the save fails.
func (s *Store) Update(ctx context.Context, id int64, fn func(p *Profile) error) (*Profile, error) {
	s.mu.Lock()
	cur, ok := s.profiles[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("profile %d: %w", id, common.ErrorNotFound)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return cur.Clone(), err
	}
	s.profiles[id] = next
	out := next.Clone()
	s.mu.Unlock()

	return out, s.Save(ctx, id)
}

// HasDuplicate reports whether creds match any stored profile other than
// excludeID.
func (s *Store) HasDuplicate(creds Credentials, excludeID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duplicateLocked(creds, excludeID)
}

// Score returns the weighted similarity between creds and p. Attributes that
// are unset on either side never match.
func (s *Store) Score(creds Credentials, p *Profile) float64 {
	score := 0.0
	for _, w := range s.weights {
		raw, ok := creds[w.Field]
		if !ok {
			continue
		}
		a := fold(raw)
		if a == "" {
			continue
		}
		v, _ := p.Value(w.Field)
		b := fold(v)
		if b == "" || a != b {
			continue
		}
		score += w.Weight
		if score >= DuplicateThreshold {
			break
		}
	}
	return score
}

func (s *Store) duplicateLocked(creds Credentials, excludeID int64) bool {
	for _, id := range s.order {
		if id == excludeID {
			continue
		}
		if s.Score(creds, s.profiles[id]) >= DuplicateThreshold {
			return true
		}
	}
	return false
}

// fold folds a value to lower-case trimmed text; empty sentinels fold
// to "".
func fold(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case int64:
		if t == 0 {
			return ""
		}
		return strconv.FormatInt(t, 10)
	case []string:
		return strings.ToLower(strings.TrimSpace(strings.Join(t, ",")))
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

// Credentials returns the schema fields of p as a credential set.
func (s *Store) Credentials(p *Profile) Credentials {
	c := make(Credentials, s.schema.Len())
	for _, f := range s.schema.Fields() {
		v, _ := p.Value(f.Name)
		c[f.Name] = v
	}
	return c
}

// UsersWithReminder lists verified users that opted into reminders, in
// store order.
func (s *Store) UsersWithReminder() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for _, id := range s.order {
		p := s.profiles[id]
		if p.IsVerified && p.SelfReserve {
			out = append(out, id)
		}
	}
	return out
}

// UserIDs lists every known user in store order.
func (s *Store) UserIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Snapshot returns copies of every profile in store order.
func (s *Store) Snapshot() []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id].Clone())
	}
	return out
}
