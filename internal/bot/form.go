package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/nav"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/session"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
)

// formExample lists every field label with a blank value.
func (b *Bot) formExample() string {
	var lines []string
	for _, f := range b.store.Schema().Fields() {
		lines = append(lines, f.Label+" : ...")
	}
	return "/signup\n" + strings.Join(lines, "\n")
}

// signupForm creates a profile in one step from a "/signup" message whose
// following lines hold "label : value" pairs.
func (b *Bot) signupForm(ctx context.Context, s *session.Session, ev transport.Event) (nav.Screen, error) {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ev.Text), "/signup"))
	creds := profiles.ParseCredentials(body, b.store.Schema())
	if creds == nil {
		b.notify(ctx, s.ChatID, b.res.Format("signup_form_help", "example", b.formExample()))
		return s.Nav.Top(), nil
	}

	if p, ok := b.store.Get(s.UserID); ok {
		if p.IsSignedUp {
			b.notify(ctx, s.ChatID, b.res.Format("already_signed_up", "profile", b.res.Button("profile")))
			return s.Nav.Top(), nil
		}
		b.store.DeleteProfile(s.UserID)
	}

	added, err := b.store.AddProfile(s.UserID, creds, false)
	if err == nil && !added.IsComplete(b.store.Schema()) {
		b.store.DeleteProfile(s.UserID)
		err = fmt.Errorf("missing %s: %w", strings.Join(added.Missing(b.store.Schema()), ", "), common.ErrorValidation)
	}
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			b.notify(ctx, s.ChatID, b.res.Format("duplicate", "admin", b.adminContact()))
		} else {
			b.notify(ctx, s.ChatID, b.res.Format("signup_form_invalid", "error", err.Error()))
		}
		if serr := b.store.Save(ctx, s.UserID); serr != nil {
			b.log.Warn(ctx, "failed to drop leftover profile", "user_id", s.UserID, "error", serr)
		}
		if errors.Is(err, common.ErrorValidation) || errors.Is(err, common.ErrorAlreadyExists) {
			return s.Nav.Top(), nil
		}
		return s.Nav.Top(), err
	}

	p, err := b.store.Update(ctx, s.UserID, func(p *profiles.Profile) error {
		p.IsSignedUp = true
		return nil
	})
	if err != nil {
		b.notify(ctx, s.ChatID, b.res.Format("not_durable"))
	} else {
		b.notify(ctx, s.ChatID, b.res.Format("signup_form_ok"))
	}
	b.announceSignup(ctx, p)
	return s.Nav.Top(), err
}
