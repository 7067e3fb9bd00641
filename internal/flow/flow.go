package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/symbiobot/internal/codec"
	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/logging"
	"github.com/dmitrijs2005/symbiobot/internal/nav"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
	"github.com/dmitrijs2005/symbiobot/internal/session"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
)

// Callback payloads produced by flow keyboards.
const (
	DataOption  = "opt:"
	DataPick    = "pick:"
	DataAdvance = "flow:next"
	DataCancel  = "flow:cancel"
	DataBack    = "flow:back"
	DataDone    = "flow:done"
)

// Texts supplies prompt templates, button labels and option lists.
type Texts interface {
	Format(key string, kv ...string) string
	Button(key string) string
	Choices(list string) []string
}

// Outcome describes what an event did to the flow.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeStarted
	OutcomeAccepted
	OutcomeInvalid
	OutcomeAdvanced
	OutcomeIncomplete
	OutcomeDuplicate
	OutcomeSignedUp
	OutcomeCancelled
	OutcomePicked
	OutcomeEdited
	OutcomeFinished
	OutcomeRefused
)

var outcomeNames = [...]string{
	"ignored", "started", "accepted", "invalid", "advanced", "incomplete",
	"duplicate", "signed_up", "cancelled", "picked", "edited", "finished", "refused",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// Result is returned by every controller operation.
type Result struct {
	Outcome Outcome
	Screen  nav.Screen
}

// SignedUpFunc is called after a profile has been finalized and saved.
type SignedUpFunc func(ctx context.Context, p *profiles.Profile)

// Controller implements the sign-up and edit state machines.
type Controller struct {
	store  *profiles.Store
	schema *schema.Schema
	texts  Texts
	sender transport.Sender
	codec  *codec.Codec
	log    logging.Logger
	admin  string

	onSignedUp SignedUpFunc
}

// Config carries the collaborators of a Controller.
type Config struct {
	Store  *profiles.Store
	Texts  Texts
	Sender transport.Sender
	Codec  *codec.Codec
	Logger logging.Logger
	// AdminContact is shown when a duplicate sign-up is refused.
	AdminContact string
	OnSignedUp   SignedUpFunc
}

func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.New()
	}
	return &Controller{
		store:      cfg.Store,
		schema:     cfg.Store.Schema(),
		texts:      cfg.Texts,
		sender:     cfg.Sender,
		codec:      cfg.Codec,
		log:        cfg.Logger,
		admin:      cfg.AdminContact,
		onSignedUp: cfg.OnSignedUp,
	}
}

// Active reports whether s has a flow in progress.
func Active(s *session.Session) bool { return s.Flow != nil }

// BeginSignup starts a fresh sign-up. A leftover incomplete profile is
// discarded so the flow always starts from empty values.
func (c *Controller) BeginSignup(ctx context.Context, s *session.Session) (Result, error) {
	if p, ok := c.store.Get(s.UserID); ok {
		if p.IsSignedUp {
			c.notify(ctx, s, c.texts.Format("already_signed_up", "profile", c.texts.Button("profile")))
			return Result{Outcome: OutcomeRefused, Screen: s.Nav.Top()}, nil
		}
		c.store.DeleteProfile(s.UserID)
	}
	if _, err := c.store.AddProfile(s.UserID, nil, true); err != nil {
		return Result{Outcome: OutcomeRefused, Screen: s.Nav.Top()}, err
	}

	s.Flow = &session.FlowState{Mode: session.ModeSignup, ReturnTo: s.Nav.Top()}
	s.Nav.Push(nav.ScreenSignup)
	c.log.Info(ctx, "signup started", "user_id", s.UserID)

	err := c.render(ctx, s, "")
	return Result{Outcome: OutcomeStarted, Screen: nav.ScreenSignup}, err
}

// BeginEdit opens the field picker for an existing profile.
func (c *Controller) BeginEdit(ctx context.Context, s *session.Session) (Result, error) {
	if _, ok := c.store.Get(s.UserID); !ok {
		c.notify(ctx, s, c.texts.Format("no_profile"))
		return Result{Outcome: OutcomeRefused, Screen: s.Nav.Top()}, nil
	}
	s.Flow = &session.FlowState{Mode: session.ModeEdit, ReturnTo: s.Nav.Top()}
	s.Nav.Push(nav.ScreenEditPicker)

	err := c.render(ctx, s, "")
	return Result{Outcome: OutcomeStarted, Screen: nav.ScreenEditPicker}, err
}

// PickField selects the field to edit.
func (c *Controller) PickField(ctx context.Context, s *session.Session, name string) (Result, error) {
	if s.Flow == nil || s.Flow.Mode != session.ModeEdit {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, nil
	}
	if _, ok := c.schema.Lookup(name); !ok {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, fmt.Errorf("pick %q: %w", name, common.ErrorNotFound)
	}
	s.Flow.Field = name
	s.Nav.Push(nav.ScreenEditField)

	err := c.render(ctx, s, "")
	return Result{Outcome: OutcomePicked, Screen: nav.ScreenEditField}, err
}

// Choose handles an option button. The label may have been shortened by
// the codec.
func (c *Controller) Choose(ctx context.Context, s *session.Session, encoded string) (Result, error) {
	label, err := c.codec.Decode(encoded)
	if err != nil {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, err
	}
	return c.Input(ctx, s, label)
}

// Input applies a value to the current field.
func (c *Controller) Input(ctx context.Context, s *session.Session, raw string) (Result, error) {
	f, ok := c.currentField(s)
	if !ok {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, nil
	}

	value, err := profiles.Coerce(f, raw)
	if err != nil {
		var verr *profiles.ValidationError
		if errors.As(err, &verr) {
			notice := c.texts.Format("invalid_value", "label", f.Label, "kind", kindWord(f.Kind), "input", raw)
			return Result{Outcome: OutcomeInvalid, Screen: s.Nav.Top()}, c.render(ctx, s, notice)
		}
		return Result{Outcome: OutcomeInvalid, Screen: s.Nav.Top()}, err
	}

	if s.Flow.Mode == session.ModeEdit {
		return c.applyEdit(ctx, s, f, value)
	}
	return c.applySignup(ctx, s, f, value)
}

func (c *Controller) applySignup(ctx context.Context, s *session.Session, f schema.Field, value any) (Result, error) {
	_, saveErr := c.store.Update(ctx, s.UserID, func(p *profiles.Profile) error {
		if f.Multi() {
			_, err := p.AppendValue(f.Name, value.(string))
			return err
		}
		return p.SetValue(f.Name, value)
	})
	if errors.Is(saveErr, common.ErrorNotFound) {
		return c.lost(ctx, s)
	}
	if saveErr != nil && !errors.Is(saveErr, common.ErrorPersistence) {
		return Result{Outcome: OutcomeInvalid, Screen: s.Nav.Top()}, saveErr
	}

	if f.Multi() {
		return Result{Outcome: OutcomeAccepted, Screen: nav.ScreenSignup}, c.renderSaved(ctx, s, saveErr)
	}

	s.Flow.Step = c.nextStep(s, s.Flow.Step+1)
	if s.Flow.Step >= c.schema.Len() {
		res, err := c.Finalize(ctx, s)
		return res, errors.Join(saveErr, err)
	}
	return Result{Outcome: OutcomeAccepted, Screen: nav.ScreenSignup}, c.renderSaved(ctx, s, saveErr)
}

func (c *Controller) applyEdit(ctx context.Context, s *session.Session, f schema.Field, value any) (Result, error) {
	_, saveErr := c.store.Update(ctx, s.UserID, func(p *profiles.Profile) error {
		if f.Multi() {
			_, err := p.ToggleValue(f.Name, value.(string))
			return err
		}
		return p.SetValue(f.Name, value)
	})
	if errors.Is(saveErr, common.ErrorNotFound) {
		return c.lost(ctx, s)
	}
	if saveErr != nil && !errors.Is(saveErr, common.ErrorPersistence) {
		return Result{Outcome: OutcomeInvalid, Screen: s.Nav.Top()}, saveErr
	}

	if f.Multi() {
		return Result{Outcome: OutcomeEdited, Screen: nav.ScreenEditField}, c.renderSaved(ctx, s, saveErr)
	}

	s.Flow.Field = ""
	s.Nav.Pop()
	notice := c.texts.Format("edit_saved", "label", f.Label)
	if saveErr != nil {
		notice = c.texts.Format("not_durable")
	}
	return Result{Outcome: OutcomeEdited, Screen: nav.ScreenEditPicker}, errors.Join(saveErr, c.render(ctx, s, notice))
}

// Advance moves a sign-up past the current multi-valued field.
func (c *Controller) Advance(ctx context.Context, s *session.Session) (Result, error) {
	f, ok := c.currentField(s)
	if !ok || s.Flow.Mode != session.ModeSignup || !f.Multi() {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, nil
	}
	s.Flow.Step++
	if s.Flow.Step >= c.schema.Len() {
		return c.Finalize(ctx, s)
	}
	return Result{Outcome: OutcomeAdvanced, Screen: nav.ScreenSignup}, c.render(ctx, s, "")
}

// Finalize marks the profile signed up when it is complete and does not
// duplicate another profile. An incomplete profile sends the flow back to
// the first required field that is still unset.
func (c *Controller) Finalize(ctx context.Context, s *session.Session) (Result, error) {
	if s.Flow == nil || s.Flow.Mode != session.ModeSignup {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, nil
	}
	p, ok := c.store.Get(s.UserID)
	if !ok {
		return c.lost(ctx, s)
	}

	if !p.IsComplete(c.schema) {
		s.Flow.Step = c.firstMissing(p)
		notice := c.texts.Format("incomplete", "missing", strings.Join(p.Missing(c.schema), ", "))
		return Result{Outcome: OutcomeIncomplete, Screen: nav.ScreenSignup}, c.render(ctx, s, notice)
	}

	if c.store.HasDuplicate(c.store.Credentials(p), s.UserID) {
		c.store.DeleteProfile(s.UserID)
		saveErr := c.store.Save(ctx, s.UserID)
		c.log.Warn(ctx, "signup refused as duplicate", "user_id", s.UserID)
		screen := c.closeFlow(ctx, s)
		c.notify(ctx, s, c.texts.Format("duplicate", "admin", c.admin))
		return Result{Outcome: OutcomeDuplicate, Screen: screen}, saveErr
	}

	p, saveErr := c.store.Update(ctx, s.UserID, func(p *profiles.Profile) error {
		p.IsSignedUp = true
		return nil
	})
	if saveErr != nil && !errors.Is(saveErr, common.ErrorPersistence) {
		return Result{Outcome: OutcomeIncomplete, Screen: nav.ScreenSignup}, saveErr
	}

	screen := c.closeFlow(ctx, s)
	if saveErr != nil {
		c.notify(ctx, s, c.texts.Format("not_durable"))
	} else {
		c.notify(ctx, s, c.texts.Format("signed_up"))
	}
	c.log.Info(ctx, "signup finalized", "user_id", s.UserID, "durable", saveErr == nil)
	if c.onSignedUp != nil {
		c.onSignedUp(ctx, p)
	}
	return Result{Outcome: OutcomeSignedUp, Screen: screen}, saveErr
}

// Back leaves the field being edited for the picker.
func (c *Controller) Back(ctx context.Context, s *session.Session) (Result, error) {
	if s.Flow == nil || s.Flow.Mode != session.ModeEdit || s.Flow.Field == "" {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, nil
	}
	s.Flow.Field = ""
	s.Nav.Pop()
	return Result{Outcome: OutcomeAccepted, Screen: nav.ScreenEditPicker}, c.render(ctx, s, "")
}

// Done closes the edit flow.
func (c *Controller) Done(ctx context.Context, s *session.Session) (Result, error) {
	if s.Flow == nil || s.Flow.Mode != session.ModeEdit {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, nil
	}
	screen := c.closeFlow(ctx, s)
	return Result{Outcome: OutcomeFinished, Screen: screen}, nil
}

// Cancel aborts the active flow. A sign-up in progress loses its profile,
// in memory and durably, so no incomplete profile survives it.
func (c *Controller) Cancel(ctx context.Context, s *session.Session) (Result, error) {
	if s.Flow == nil {
		return Result{Outcome: OutcomeIgnored, Screen: s.Nav.Top()}, nil
	}
	if s.Flow.Mode == session.ModeEdit {
		return c.Done(ctx, s)
	}

	var saveErr error
	if p, ok := c.store.Get(s.UserID); ok && !p.IsSignedUp {
		c.store.DeleteProfile(s.UserID)
		saveErr = c.store.Save(ctx, s.UserID)
	}
	screen := c.closeFlow(ctx, s)
	c.log.Info(ctx, "signup cancelled", "user_id", s.UserID)
	if saveErr != nil {
		c.notify(ctx, s, c.texts.Format("not_durable"))
	} else {
		c.notify(ctx, s, c.texts.Format("signup_cancelled"))
	}
	return Result{Outcome: OutcomeCancelled, Screen: screen}, saveErr
}

// Handle routes a flow payload or free text to the matching operation. It
// reports false when the event is not for the flow.
func (c *Controller) Handle(ctx context.Context, s *session.Session, ev transport.Event) (Result, bool, error) {
	if s.Flow == nil {
		return Result{}, false, nil
	}
	if !ev.IsCallback() {
		if s.Flow.Mode == session.ModeEdit && s.Flow.Field == "" {
			return Result{}, false, nil
		}
		res, err := c.Input(ctx, s, ev.Text)
		return res, true, err
	}

	var (
		res Result
		err error
	)
	switch data := ev.Data; {
	case data == DataAdvance:
		res, err = c.Advance(ctx, s)
	case data == DataCancel:
		res, err = c.Cancel(ctx, s)
	case data == DataBack:
		res, err = c.Back(ctx, s)
	case data == DataDone:
		res, err = c.Done(ctx, s)
	case strings.HasPrefix(data, DataPick):
		res, err = c.PickField(ctx, s, strings.TrimPrefix(data, DataPick))
	case strings.HasPrefix(data, DataOption):
		res, err = c.Choose(ctx, s, strings.TrimPrefix(data, DataOption))
	default:
		return Result{}, false, nil
	}
	return res, true, err
}

// nextStep skips required fields that already hold a value, which only
// happens when Finalize sent the flow back to fill a gap.
func (c *Controller) nextStep(s *session.Session, step int) int {
	p, ok := c.store.Get(s.UserID)
	if !ok {
		return step
	}
	for ; step < c.schema.Len(); step++ {
		f := c.schema.At(step)
		if !f.Required {
			break
		}
		if v, ok := p.Value(f.Name); !ok || f.IsEmpty(v) {
			break
		}
	}
	return step
}

func (c *Controller) firstMissing(p *profiles.Profile) int {
	for _, f := range c.schema.Required() {
		if v, ok := p.Value(f.Name); !ok || f.IsEmpty(v) {
			return c.schema.Index(f.Name)
		}
	}
	return c.schema.Len() - 1
}

func (c *Controller) currentField(s *session.Session) (schema.Field, bool) {
	if s.Flow == nil {
		return schema.Field{}, false
	}
	switch s.Flow.Mode {
	case session.ModeSignup:
		if s.Flow.Step < 0 || s.Flow.Step >= c.schema.Len() {
			return schema.Field{}, false
		}
		return c.schema.At(s.Flow.Step), true
	case session.ModeEdit:
		if s.Flow.Field == "" {
			return schema.Field{}, false
		}
		return c.schema.Lookup(s.Flow.Field)
	}
	return schema.Field{}, false
}

// lost ends a flow whose profile disappeared, e.g. after an admin
// rejection.
func (c *Controller) lost(ctx context.Context, s *session.Session) (Result, error) {
	screen := c.closeFlow(ctx, s)
	c.notify(ctx, s, c.texts.Format("no_profile"))
	return Result{Outcome: OutcomeCancelled, Screen: screen}, fmt.Errorf("profile %d: %w", s.UserID, common.ErrorNotFound)
}

// closeFlow drops the flow state, removes its message and returns the
// session to the screen it came from.
func (c *Controller) closeFlow(ctx context.Context, s *session.Session) nav.Screen {
	st := s.Flow
	s.Flow = nil
	if st.MessageID != 0 {
		if err := c.sender.Delete(ctx, s.ChatID, st.MessageID); err != nil {
			c.log.Warn(ctx, "failed to delete flow message", "chat_id", s.ChatID, "error", err)
		}
	}
	for s.Nav.Top() != st.ReturnTo {
		if _, ok := s.Nav.Pop(); !ok {
			break
		}
	}
	if s.Nav.Top() != st.ReturnTo {
		s.Nav.Reset(st.ReturnTo)
	}
	return s.Nav.Top()
}

func (c *Controller) notify(ctx context.Context, s *session.Session, text string) {
	if _, err := c.sender.SendOrEdit(ctx, s.ChatID, text, transport.Options{ParseMode: transport.ParseModeHTML}); err != nil {
		c.log.Warn(ctx, "failed to send notice", "chat_id", s.ChatID, "error", err)
	}
}

func kindWord(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "a number"
	case schema.KindList:
		return "a list of values"
	}
	return "text"
}
