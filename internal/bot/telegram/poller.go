package telegram

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"golang.org/x/sync/errgroup"
)

type user struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type chat struct {
	ID int64 `json:"id"`
}

type entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url"`
}

type message struct {
	MessageID int      `json:"message_id"`
	From      *user    `json:"from"`
	Chat      chat     `json:"chat"`
	Text      string   `json:"text"`
	Entities  []entity `json:"entities"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    user     `json:"from"`
	Message *message `json:"message"`
	Data    string   `json:"data"`
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

// toEvent converts an update, reporting false for updates the bot ignores.
func (u update) toEvent() (transport.Event, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		m := u.Message
		ev := transport.Event{
			ChatID:    m.Chat.ID,
			UserID:    m.From.ID,
			Username:  m.From.Username,
			MessageID: m.MessageID,
			Text:      m.Text,
		}
		for _, e := range m.Entities {
			ev.Entities = append(ev.Entities, transport.Entity{Type: e.Type, Offset: e.Offset, Length: e.Length, URL: e.URL})
		}
		return ev, true
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		ev := transport.Event{
			ChatID:     q.From.ID,
			UserID:     q.From.ID,
			Username:   q.From.Username,
			CallbackID: q.ID,
			Data:       q.Data,
		}
		if q.Message != nil {
			ev.ChatID = q.Message.Chat.ID
			ev.MessageID = q.Message.MessageID
		}
		return ev, true
	}
	return transport.Event{}, false
}

// MaxInFlight bounds the number of chats handled at the same time.
const MaxInFlight = 16

// dispatcher hands events to h in arrival order per chat while different
// chats proceed in parallel. A chat has at most one worker; its key stays in
// pending while that worker runs.
type dispatcher struct {
	ctx     context.Context
	g       *errgroup.Group
	h       transport.Handler
	mu      sync.Mutex
	pending map[int64][]transport.Event
}

func newDispatcher(ctx context.Context, g *errgroup.Group, h transport.Handler) *dispatcher {
	return &dispatcher{ctx: ctx, g: g, h: h, pending: map[int64][]transport.Event{}}
}

func (d *dispatcher) submit(ev transport.Event) {
	d.mu.Lock()
	q, running := d.pending[ev.ChatID]
	d.pending[ev.ChatID] = append(q, ev)
	d.mu.Unlock()
	if running {
		return
	}
	d.g.Go(func() error {
		d.drain(ev.ChatID)
		return nil
	})
}

func (d *dispatcher) drain(chatID int64) {
	for {
		d.mu.Lock()
		q := d.pending[chatID]
		if len(q) == 0 {
			delete(d.pending, chatID)
			d.mu.Unlock()
			return
		}
		ev := q[0]
		d.pending[chatID] = q[1:]
		d.mu.Unlock()
		d.h(d.ctx, ev)
	}
}

var _ transport.Source = (*Client)(nil)

// Run long-polls for updates and hands each event to h until ctx is done.
// Events of one chat are handled one at a time in update order. Poll
// failures are logged and retried after a pause.
func (c *Client) Run(ctx context.Context, h transport.Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxInFlight)
	d := newDispatcher(gctx, g, h)

	var offset int64
	backoff := time.Second
	for gctx.Err() == nil {
		var updates []update
		err := c.call(gctx, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         int(c.pollTimeout.Seconds()),
			"allowed_updates": []string{"message", "callback_query"},
		}, &updates)
		if err != nil {
			if gctx.Err() != nil {
				break
			}
			c.log.Warn(gctx, "poll failed", "error", err, "retry_in", backoff)
			select {
			case <-gctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			offset = max(offset, u.UpdateID+1)
			ev, ok := u.toEvent()
			if !ok {
				continue
			}
			d.submit(ev)
		}
	}
	return g.Wait()
}
