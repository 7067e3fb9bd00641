package bot

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/nav"
	"github.com/dmitrijs2005/symbiobot/internal/resources"
	"github.com/dmitrijs2005/symbiobot/internal/richtext"
	"github.com/dmitrijs2005/symbiobot/internal/roles"
	"github.com/dmitrijs2005/symbiobot/internal/session"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
)

func (b *Bot) categoryByKey(key string) (resources.Category, bool) {
	for _, c := range b.res.Categories() {
		if c.Key == key {
			return c, true
		}
	}
	return resources.Category{}, false
}

// content lists the content categories.
func (b *Bot) content(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	if role, _ := b.role(s.UserID); role != roles.Student && role != roles.Admin {
		b.notify(ctx, s.ChatID, b.res.Format("no_profile"))
		return s.Nav.Top(), nil
	}
	s.Nav.Push(nav.ScreenContent)
	s.Content = session.ContentState{}

	var rows [][]string
	for _, c := range b.res.Categories() {
		rows = append(rows, []string{c.Title})
	}
	rows = append(rows, []string{b.res.Button("back")})
	_, err := b.send(ctx, s.ChatID, b.res.Format("content"), b.replyKeyboard(rows...))
	return nav.ScreenContent, err
}

func (b *Bot) openCategory(ctx context.Context, s *session.Session, c resources.Category) (nav.Screen, error) {
	s.Nav.Push(nav.ScreenContentList)
	s.Content = session.ContentState{Category: c.Key}

	var rows [][]string
	for _, it := range c.Items {
		rows = append(rows, []string{it.Title})
	}
	rows = append(rows, []string{b.res.Button("back")})
	_, err := b.send(ctx, s.ChatID, b.res.Format("content_category", "category", c.Title), b.replyKeyboard(rows...))
	return nav.ScreenContentList, err
}

// showItem sends the item text; the administrator also gets an edit button.
func (b *Bot) showItem(ctx context.Context, s *session.Session, it resources.Item) (nav.Screen, error) {
	s.Content.Item = it.Title
	var kb *transport.Keyboard
	if s.UserID == b.cfg.AdminID {
		kb = &transport.Keyboard{Inline: true, Rows: [][]transport.Button{
			transport.Row(b.menuButton("edit_content", ActionEditContent)),
		}}
	}
	_, err := b.send(ctx, s.ChatID, it.Text, kb)
	return nav.ScreenContentList, err
}

func (b *Bot) editContent(ctx context.Context, s *session.Session, _ transport.Event) (nav.Screen, error) {
	if s.UserID != b.cfg.AdminID {
		b.notify(ctx, s.ChatID, b.res.Format("admin_only"))
		return s.Nav.Top(), nil
	}
	if s.Content.Category == "" || s.Content.Item == "" {
		b.notify(ctx, s.ChatID, b.res.Format("stale_action"))
		return s.Nav.Top(), nil
	}
	s.Nav.Push(nav.ScreenContentEdit)
	kb := b.replyKeyboard([]string{b.res.Button("back")})
	_, err := b.send(ctx, s.ChatID, b.res.Format("content_edit_prompt", "item", s.Content.Item), kb)
	return nav.ScreenContentEdit, err
}

// saveContent stores the administrator's message, with its formatting
// converted to HTML, as the new text of the selected item.
func (b *Bot) saveContent(ctx context.Context, s *session.Session, ev transport.Event) (nav.Screen, error) {
	text := richtext.Apply(ev.Text, ev.Entities, b.res.Tags())
	if err := b.res.SetItemText(s.Content.Category, s.Content.Item, text); err != nil {
		s.Nav.Pop()
		b.notify(ctx, s.ChatID, b.res.Format("stale_action"))
		return s.Nav.Top(), err
	}

	err := b.res.Save()
	notice := b.res.Format("content_saved")
	if err != nil {
		notice = b.res.Format("not_durable")
		if !errors.Is(err, common.ErrorPersistence) {
			err = errors.Join(common.ErrorPersistence, err)
		}
	}
	b.notify(ctx, s.ChatID, notice)

	s.Nav.Pop()
	c, ok := b.categoryByKey(s.Content.Category)
	if !ok {
		return s.Nav.Top(), err
	}
	screen, serr := b.openCategory(ctx, s, c)
	return screen, errors.Join(err, serr)
}
