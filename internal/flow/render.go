package flow

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
	"github.com/dmitrijs2005/symbiobot/internal/session"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
)

// render edits the flow message in place, or sends it the first time.
func (c *Controller) render(ctx context.Context, s *session.Session, notice string) error {
	p, ok := c.store.Get(s.UserID)
	if !ok {
		p = profiles.New(s.UserID, c.store.Bounds())
	}

	var b strings.Builder
	var kb *transport.Keyboard

	switch s.Flow.Mode {
	case session.ModeSignup:
		b.WriteString(c.texts.Format("signup_header",
			"step", strconv.Itoa(s.Flow.Step+1), "total", strconv.Itoa(c.schema.Len())))
		b.WriteString("\n")
		b.WriteString(profiles.Outline(p, c.schema))
		f := c.schema.At(s.Flow.Step)
		b.WriteString("\n\n")
		b.WriteString(c.prompt(f, "next", c.texts.Button("next")))
		kb = c.fieldKeyboard(p, f, DataAdvance, c.texts.Button("next"))

	case session.ModeEdit:
		b.WriteString(c.texts.Format("edit_header"))
		b.WriteString("\n")
		b.WriteString(profiles.Outline(p, c.schema))
		b.WriteString("\n\n")
		if f, ok := c.schema.Lookup(s.Flow.Field); ok {
			if f.Multi() {
				b.WriteString(c.texts.Format("prompt_multi_edit", "label", f.Label, "back", c.texts.Button("back")))
			} else {
				b.WriteString(c.prompt(f))
			}
			kb = c.fieldKeyboard(p, f, DataBack, c.texts.Button("back"))
		} else {
			b.WriteString(c.texts.Format("edit_picker"))
			kb = c.pickerKeyboard()
		}
	}

	if notice != "" {
		b.WriteString("\n\n")
		b.WriteString(notice)
	}

	id, err := c.sender.SendOrEdit(ctx, s.ChatID, b.String(), transport.Options{
		Keyboard:   kb,
		ParseMode:  transport.ParseModeHTML,
		EditTarget: s.Flow.MessageID,
	})
	if err != nil {
		c.log.Warn(ctx, "failed to render flow", "chat_id", s.ChatID, "error", err)
		return err
	}
	s.Flow.MessageID = id
	return nil
}

// renderSaved re-renders after a mutation, replacing any notice with the
// not-durable warning when the save failed.
func (c *Controller) renderSaved(ctx context.Context, s *session.Session, saveErr error) error {
	notice := ""
	if saveErr != nil {
		notice = c.texts.Format("not_durable")
	}
	return errors.Join(saveErr, c.render(ctx, s, notice))
}

func (c *Controller) prompt(f schema.Field, extra ...string) string {
	kv := append([]string{"label", f.Label}, extra...)
	switch {
	case f.Multi():
		return c.texts.Format("prompt_multi", kv...)
	case f.Choosable():
		return c.texts.Format("prompt_choice", kv...)
	}
	return c.texts.Format("prompt", kv...)
}

// fieldKeyboard lists the options of f, one per row, marking selected
// values of multi-valued fields. Multi-valued fields also get a button
// carrying onward.
func (c *Controller) fieldKeyboard(p *profiles.Profile, f schema.Field, onward, onwardLabel string) *transport.Keyboard {
	kb := &transport.Keyboard{Inline: true}
	if f.Choosable() {
		selected := p.Values(f.Name)
		for _, opt := range c.texts.Choices(f.Choices) {
			text := opt
			if f.Multi() && slices.Contains(selected, opt) {
				text = "✅ " + opt
			}
			kb.Rows = append(kb.Rows, transport.Row(transport.Button{Text: text, Data: c.codec.Fit(DataOption, opt)}))
		}
	}
	if f.Multi() {
		kb.Rows = append(kb.Rows, transport.Row(transport.Button{Text: onwardLabel, Data: onward}))
	}
	if onward == DataBack && !f.Multi() {
		kb.Rows = append(kb.Rows, transport.Row(transport.Button{Text: c.texts.Button("back"), Data: DataBack}))
	}
	if onward == DataAdvance {
		kb.Rows = append(kb.Rows, transport.Row(transport.Button{Text: c.texts.Button("cancel"), Data: DataCancel}))
	}
	return kb
}

// pickerKeyboard offers every schema field, two per row.
func (c *Controller) pickerKeyboard() *transport.Keyboard {
	kb := &transport.Keyboard{Inline: true}
	var row []transport.Button
	for _, f := range c.schema.Fields() {
		row = append(row, transport.Button{Text: f.Label, Data: DataPick + f.Name})
		if len(row) == 2 {
			kb.Rows = append(kb.Rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.Rows = append(kb.Rows, row)
	}
	kb.Rows = append(kb.Rows, transport.Row(transport.Button{Text: c.texts.Button("done"), Data: DataDone}))
	return kb
}
