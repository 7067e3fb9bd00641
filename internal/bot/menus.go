package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/symbiobot/internal/flow"
	"github.com/dmitrijs2005/symbiobot/internal/nav"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/roles"
	"github.com/dmitrijs2005/symbiobot/internal/session"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
)

func (b *Bot) replyKeyboard(rows ...[]string) *transport.Keyboard {
	kb := &transport.Keyboard{}
	for _, r := range rows {
		row := make([]transport.Button, 0, len(r))
		for _, label := range r {
			row = append(row, transport.Button{Text: label})
		}
		kb.Rows = append(kb.Rows, row)
	}
	return kb
}

func (b *Bot) menuButton(key, action string) transport.Button {
	return transport.Button{Text: b.res.Button(key), Data: DataMenu + action}
}

func (b *Bot) mainKeyboard(role roles.Role) *transport.Keyboard {
	btn := b.res.Button
	switch role {
	case roles.Admin:
		return b.replyKeyboard(
			[]string{btn("profile"), btn("content")},
			[]string{btn("export"), btn("settings"), btn("about")},
		)
	case roles.Student:
		return b.replyKeyboard(
			[]string{btn("profile"), btn("content")},
			[]string{btn("settings"), btn("about")},
		)
	case roles.Unregistered, roles.IncompleteProfile:
		return &transport.Keyboard{Inline: true, Rows: [][]transport.Button{
			transport.Row(b.menuButton("signup", ActionSignup)),
		}}
	}
	return &transport.Keyboard{Remove: true}
}

func (b *Bot) displayName(s *session.Session, p *profiles.Profile) string {
	if p != nil {
		if n := strings.TrimSpace(p.FullName()); n != "" {
			return n
		}
	}
	if s.Username != "" {
		return s.Username
	}
	return "friend"
}

// start resets the session to its role's main menu.
func (b *Bot) start(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	if flow.Active(s) {
		if _, err := b.ctrl.Cancel(ctx, s); err != nil {
			b.log.Warn(ctx, "cancel on start failed", "chat_id", s.ChatID, "error", err)
		}
	}
	role, p := b.role(s.UserID)
	s.Nav.Reset(nav.ScreenStart)
	s.Content = session.ContentState{}

	key := "welcome_" + map[roles.Role]string{
		roles.Admin:             "admin",
		roles.Student:           "student",
		roles.Unverified:        "unverified",
		roles.IncompleteProfile: "incomplete",
		roles.Unregistered:      "unregistered",
	}[role]
	text := b.res.Format(key,
		"name", b.displayName(s, p),
		"club", b.cfg.ClubName,
		"signup", b.res.Button("signup"))

	_, err := b.send(ctx, s.ChatID, text, b.mainKeyboard(role))
	return nav.ScreenStart, err
}

func (b *Bot) signup(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	res, err := b.ctrl.BeginSignup(ctx, s)
	return res.Screen, err
}

func (b *Bot) cancel(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	res, err := b.ctrl.Cancel(ctx, s)
	if res.Outcome == flow.OutcomeIgnored {
		return b.back(ctx, s, transport.Event{})
	}
	return res.Screen, err
}

func (b *Bot) showProfile(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	p, ok := b.store.Get(s.UserID)
	if !ok {
		b.notify(ctx, s.ChatID, b.res.Format("no_profile"))
		return s.Nav.Top(), nil
	}
	s.Nav.Push(nav.ScreenProfile)
	kb := &transport.Keyboard{Inline: true, Rows: [][]transport.Button{
		transport.Row(b.menuButton("edit_profile", ActionEditProfile)),
	}}
	_, err := b.send(ctx, s.ChatID, profiles.Card(p, b.store.Schema()), kb)
	return nav.ScreenProfile, err
}

func (b *Bot) editProfile(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	res, err := b.ctrl.BeginEdit(ctx, s)
	return res.Screen, err
}

func (b *Bot) reminderLabel(p *profiles.Profile) string {
	if p.SelfReserve {
		return b.res.Button("reminder_on")
	}
	return b.res.Button("reminder_off")
}

func (b *Bot) settings(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	p, ok := b.store.Get(s.UserID)
	if !ok {
		b.notify(ctx, s.ChatID, b.res.Format("no_profile"))
		return s.Nav.Top(), nil
	}
	s.Nav.Push(nav.ScreenSettings)
	kb := b.replyKeyboard(
		[]string{b.res.Button("scale"), b.reminderLabel(p)},
		[]string{b.res.Button("back")},
	)
	_, err := b.send(ctx, s.ChatID, b.res.Format("settings"), kb)
	return nav.ScreenSettings, err
}

func (b *Bot) toggleReminder(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	p, err := b.store.Update(ctx, s.UserID, func(p *profiles.Profile) error {
		p.SelfReserve = !p.SelfReserve
		return nil
	})
	if p == nil {
		b.notify(ctx, s.ChatID, b.res.Format("no_profile"))
		return s.Nav.Top(), err
	}

	text := b.res.Format("reminder_off")
	if p.SelfReserve {
		text = b.res.Format("reminder_on")
	}
	if err != nil {
		text = b.res.Format("not_durable")
	}
	kb := b.replyKeyboard(
		[]string{b.res.Button("scale"), b.reminderLabel(p)},
		[]string{b.res.Button("back")},
	)
	if _, serr := b.send(ctx, s.ChatID, text, kb); serr != nil && err == nil {
		err = serr
	}
	return nav.ScreenSettings, err
}

func (b *Bot) scalePreview(p *profiles.Profile) string {
	f := profiles.Borders(p.Scale, b.cfg.ClubName)
	return b.res.Format("scale_preview",
		"header", f.Header,
		"up", b.res.Button("scale_up"),
		"down", b.res.Button("scale_down"),
		"scale", strconv.Itoa(p.Scale),
		"bottom", f.Bottom)
}

// scale opens the scale screen. The preview is a new message carrying the
// +/- keyboard; later adjustments edit it.
func (b *Bot) scale(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	p, ok := b.store.Get(s.UserID)
	if !ok {
		b.notify(ctx, s.ChatID, b.res.Format("no_profile"))
		return s.Nav.Top(), nil
	}
	s.Nav.Push(nav.ScreenScale)
	kb := b.replyKeyboard(
		[]string{b.res.Button("scale_up")},
		[]string{b.res.Button("scale_down")},
		[]string{b.res.Button("back")},
	)
	id, err := b.send(ctx, s.ChatID, b.scalePreview(p), kb)
	if err == nil {
		s.ScaleMessageID = id
	}
	return nav.ScreenScale, err
}

func (b *Bot) scaleUp(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	return b.adjustScale(ctx, s, true)
}

func (b *Bot) scaleDown(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	return b.adjustScale(ctx, s, false)
}

func (b *Bot) adjustScale(ctx context.Context, s *session.Session, up bool) (nav.Screen, error) {
	bounds := b.store.Bounds()
	p, err := b.store.Update(ctx, s.UserID, func(p *profiles.Profile) error {
		p.AdjustScale(up, bounds)
		return nil
	})
	if p == nil {
		b.notify(ctx, s.ChatID, b.res.Format("no_profile"))
		return s.Nav.Top(), err
	}
	if err != nil {
		b.notify(ctx, s.ChatID, b.res.Format("not_durable"))
	}

	id, serr := b.sender.SendOrEdit(ctx, s.ChatID, b.scalePreview(p), transport.Options{
		ParseMode:  transport.ParseModeHTML,
		EditTarget: s.ScaleMessageID,
	})
	if serr == nil {
		s.ScaleMessageID = id
	} else if err == nil {
		err = serr
	}
	return nav.ScreenScale, err
}

func (b *Bot) about(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	return s.Nav.Top(), b.sendAbout(ctx, s.UserID, s.ChatID)
}

// sendAbout renders the about text framed at the user's card width.
func (b *Bot) sendAbout(ctx context.Context, userID, chatID int64) error {
	scale := b.store.Bounds().Default
	if p, ok := b.store.Get(userID); ok {
		scale = p.Scale
	}
	f := profiles.Borders(scale, b.cfg.ClubName)
	text := b.res.Format("about",
		"header", f.Header,
		"club", b.cfg.ClubName,
		"line", f.Line,
		"admin", b.adminContact(),
		"bottom", f.Bottom)
	_, err := b.send(ctx, chatID, text, nil)
	return err
}

// back pops one screen and shows the screen below it.
func (b *Bot) back(ctx context.Context, s *session.Session, ev transport.Event) (nav.Screen, error) {
	if s.Nav.Top() == nav.ScreenContentEdit {
		s.Content.Item = ""
	}
	screen, ok := s.Nav.Pop()
	if !ok {
		return b.start(ctx, s, ev)
	}
	return b.show(ctx, s, screen, ev)
}

// show re-renders screen, which is already the top of the stack.
func (b *Bot) show(ctx context.Context, s *session.Session, screen nav.Screen, ev transport.Event) (nav.Screen, error) {
	switch screen {
	case nav.ScreenProfile:
		return b.showProfile(ctx, s, ev)
	case nav.ScreenSettings:
		return b.settings(ctx, s, ev)
	case nav.ScreenScale:
		return b.scale(ctx, s, ev)
	case nav.ScreenContent:
		return b.content(ctx, s, ev)
	case nav.ScreenContentList:
		if c, ok := b.categoryByKey(s.Content.Category); ok {
			return b.openCategory(ctx, s, c)
		}
		return b.content(ctx, s, ev)
	}
	return b.start(ctx, s, ev)
}
