package reminder

import (
	"context"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/logging"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"golang.org/x/sync/errgroup"
)

// Recipients lists the users that should receive reminders.
type Recipients interface {
	UsersWithReminder() []int64
}

// Texts resolves message keys.
type Texts interface {
	Format(key string, kv ...string) string
}

// DefaultConcurrency bounds simultaneous sends.
const DefaultConcurrency = 8

type Config struct {
	Schedule    Schedule
	Recipients  Recipients
	Texts       Texts
	Sender      transport.Sender
	Logger      logging.Logger
	Concurrency int
}

// Scheduler waits for each slot of its schedule and fans the slot's
// message out to every recipient.
type Scheduler struct {
	cfg   Config
	log   logging.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewScheduler(cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Scheduler{cfg: cfg, log: log, now: time.Now, after: time.After}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		at, slot, ok := s.cfg.Schedule.Next(s.now())
		if !ok {
			s.log.Warn(ctx, "reminder schedule is empty")
			<-ctx.Done()
			return nil
		}
		s.log.Debug(ctx, "next reminder", "at", at, "message", slot.Message)

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(time.Until(at)):
		}

		sent := s.Dispatch(ctx, slot)
		s.log.Info(ctx, "reminders sent", "message", slot.Message, "sent", sent)
	}
}

// Dispatch sends slot's message to every recipient and returns how many
// sends succeeded. A failed send is logged and does not stop the rest.
func (s *Scheduler) Dispatch(ctx context.Context, slot Slot) int {
	text := s.cfg.Texts.Format(slot.Message)
	users := s.cfg.Recipients.UsersWithReminder()
	ok := make([]bool, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range users {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if _, err := s.cfg.Sender.SendOrEdit(gctx, id, text, transport.Options{ParseMode: transport.ParseModeHTML}); err != nil {
				s.log.Warn(gctx, "reminder send failed", "user_id", id, "error", err)
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
	return n
}
