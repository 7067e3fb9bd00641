package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/export"
	"github.com/dmitrijs2005/symbiobot/internal/nav"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/session"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"golang.org/x/sync/errgroup"
)

// announceSignup sends the administrator the new profile, framed at the
// administrator's own card width, with approve and reject buttons.
func (b *Bot) announceSignup(ctx context.Context, p *profiles.Profile) {
	if b.cfg.AdminID == 0 {
		b.log.Warn(ctx, "no administrator configured, signup not announced", "user_id", p.UserID)
		return
	}
	card := p.Clone()
	card.Scale = b.store.Bounds().Default
	if admin, ok := b.store.Get(b.cfg.AdminID); ok {
		card.Scale = admin.Scale
	}

	id := strconv.FormatInt(p.UserID, 10)
	text := b.res.Format("admin_new_signup",
		"card", profiles.Card(card, b.store.Schema()),
		"user_id", id)
	kb := &transport.Keyboard{Inline: true, Rows: [][]transport.Button{transport.Row(
		transport.Button{Text: b.res.Button("verify"), Data: DataVerify + id},
		transport.Button{Text: b.res.Button("reject"), Data: DataReject + id},
	)}}
	if _, err := b.send(ctx, b.cfg.AdminID, text, kb); err != nil {
		b.log.Error(ctx, "failed to announce signup", "user_id", p.UserID, "error", err)
	}
}

// verify approves or rejects the profile of the user named in a callback.
// Approval marks the profile verified; rejection removes it so the user can
// sign up again.
func (b *Bot) verify(ctx context.Context, s *session.Session, ev transport.Event, rawID string, approve bool) (nav.Screen, error) {
	if s.UserID != b.cfg.AdminID {
		b.notify(ctx, s.ChatID, b.res.Format("admin_only"))
		return s.Nav.Top(), nil
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return s.Nav.Top(), fmt.Errorf("verify payload %q: %w", rawID, common.ErrorUnknownCode)
	}
	p, ok := b.store.Get(userID)
	if !ok {
		b.editAdminMessage(ctx, s, ev, b.res.Format("no_profile"))
		return s.Nav.Top(), nil
	}
	name := p.FullName()

	if approve {
		_, err = b.store.Update(ctx, userID, func(p *profiles.Profile) error {
			p.IsVerified = true
			return nil
		})
		if err != nil && !errors.Is(err, common.ErrorPersistence) {
			return s.Nav.Top(), err
		}
		notice := b.res.Format("verified_admin", "name", name)
		if err != nil {
			notice += "\n" + b.res.Format("not_durable")
		}
		b.editAdminMessage(ctx, s, ev, notice)
		b.notify(ctx, userID, b.res.Format("verified_user"))
		if aerr := b.sendAbout(ctx, userID, userID); aerr != nil {
			b.log.Warn(ctx, "failed to send about", "user_id", userID, "error", aerr)
		}
		b.log.Info(ctx, "profile verified", "user_id", userID, "durable", err == nil)
		return s.Nav.Top(), err
	}

	b.store.DeleteProfile(userID)
	err = b.store.Save(ctx, userID)
	notice := b.res.Format("rejected_admin", "name", name)
	if err != nil {
		notice += "\n" + b.res.Format("not_durable")
	}
	b.editAdminMessage(ctx, s, ev, notice)
	b.notify(ctx, userID, b.res.Format("rejected_user", "admin", b.adminContact()))
	b.log.Info(ctx, "profile rejected", "user_id", userID, "durable", err == nil)
	return s.Nav.Top(), err
}

// editAdminMessage replaces the approval card, dropping its buttons.
func (b *Bot) editAdminMessage(ctx context.Context, s *session.Session, ev transport.Event, text string) {
	_, err := b.sender.SendOrEdit(ctx, s.ChatID, text, transport.Options{
		ParseMode:  transport.ParseModeHTML,
		EditTarget: ev.MessageID,
	})
	if err != nil {
		b.log.Warn(ctx, "failed to update approval message", "error", err)
	}
}

// export sends the administrator a spreadsheet of every profile and, when
// a publisher is configured, a download link to an uploaded copy.
func (b *Bot) export(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	if s.UserID != b.cfg.AdminID {
		b.notify(ctx, s.ChatID, b.res.Format("admin_only"))
		return s.Nav.Top(), nil
	}

	list := b.store.Snapshot()
	data, err := export.Build(list, b.store.Schema())
	if err != nil {
		b.notify(ctx, s.ChatID, b.res.Format("export_failed", "error", err.Error()))
		return s.Nav.Top(), err
	}

	caption := b.res.Format("export_caption", "count", strconv.Itoa(len(list)))
	if err := b.sender.SendDocument(ctx, s.ChatID, b.cfg.ExportName, bytes.NewReader(data), caption); err != nil {
		b.notify(ctx, s.ChatID, b.res.Format("export_failed", "error", err.Error()))
		return s.Nav.Top(), err
	}
	b.log.Info(ctx, "profiles exported", "count", len(list))

	if b.cfg.Publisher == nil {
		return s.Nav.Top(), nil
	}
	url, err := b.cfg.Publisher.Publish(ctx, b.cfg.ExportName, data)
	if err != nil {
		b.notify(ctx, s.ChatID, b.res.Format("export_failed", "error", err.Error()))
		return s.Nav.Top(), err
	}
	b.notify(ctx, s.ChatID, b.res.Format("export_link",
		"ttl", b.cfg.Publisher.LinkLifetime().String(),
		"url", url))
	return s.Nav.Top(), nil
}

// Broadcast sends the message stored under key to every known user and
// returns how many sends succeeded.
func (b *Bot) Broadcast(ctx context.Context, key string) int {
	text := b.res.Format(key)
	ids := b.store.UserIDs()
	ok := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if _, err := b.send(gctx, id, text, nil); err != nil {
				b.log.Warn(gctx, "broadcast send failed", "user_id", id, "error", err)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, v := range ok {
		if v {
			n++
		}
	}
	b.log.Info(ctx, "broadcast sent", "message", key, "sent", n, "users", len(ids))
	return n
}
