// Package app initializes and runs the bot: it opens the profile storage,
// builds the chat transport and starts the event loop together with the
// reminder scheduler, stopping both on SIGINT or SIGTERM.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/symbiobot/internal/bot"
	"github.com/dmitrijs2005/symbiobot/internal/bot/console"
	"github.com/dmitrijs2005/symbiobot/internal/bot/telegram"
	"github.com/dmitrijs2005/symbiobot/internal/config"
	"github.com/dmitrijs2005/symbiobot/internal/export"
	"github.com/dmitrijs2005/symbiobot/internal/logging"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/reminder"
	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
	"github.com/dmitrijs2005/symbiobot/internal/resources"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"golang.org/x/sync/errgroup"
)

// transportEndpoint is both halves of a chat connection.
type transportEndpoint interface {
	transport.Sender
	transport.Source
}

type App struct {
	config    *config.Config
	logger    logging.Logger
	store     *profiles.Store
	resources *resources.Resources
	endpoint  transportEndpoint
	bot       *bot.Bot
	closeRepo func() error
}

// newEndpoint is a test seam.
var newEndpoint = func(c *config.Config, logger logging.Logger) transportEndpoint {
	if c.Transport == config.TransportConsole {
		return console.New(os.Stdin, os.Stdout, c.AdminID, c.AdminUsername)
	}
	return telegram.New(telegram.Config{
		BaseURL:     c.APIURL,
		Token:       c.Token,
		PollTimeout: c.PollTimeout,
		Logger:      logger,
	})
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	res, err := resources.Load(c.ResourcesPath)
	if err != nil {
		return nil, fmt.Errorf("resources init error: %w", err)
	}

	repo, closeRepo, err := records.Open(ctx, c.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	store, err := profiles.NewStore(profiles.StoreConfig{
		Schema:  res.Schema(),
		Repo:    repo,
		Weights: res.Weights(),
		Bounds:  c.Bounds(),
		Logger:  logger,
	})
	if err == nil {
		err = store.Load(ctx)
	}
	if err != nil {
		_ = closeRepo()
		return nil, fmt.Errorf("profile store init error: %w", err)
	}

	endpoint := newEndpoint(c, logger)

	var publisher bot.Publisher
	if s3cfg := c.S3(); s3cfg.Enabled() {
		p, err := export.NewPublisher(ctx, s3cfg)
		if err != nil {
			_ = closeRepo()
			return nil, fmt.Errorf("export publisher init error: %w", err)
		}
		publisher = p
	}

	b, err := bot.New(bot.Config{
		Store:         store,
		Resources:     res,
		Sender:        endpoint,
		Logger:        logger,
		AdminID:       c.AdminID,
		AdminUsername: c.AdminUsername,
		ClubName:      c.ClubName,
		ExportName:    c.ExportName,
		Publisher:     publisher,
	})
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	return &App{
		config:    c,
		logger:    logger,
		store:     store,
		resources: res,
		endpoint:  endpoint,
		bot:       b,
		closeRepo: closeRepo,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves events until ctx is cancelled or a signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "Starting bot...", "transport", app.config.Transport, "storage", app.config.Storage, "profiles", len(app.store.UserIDs()))

	if app.config.Updated {
		app.bot.Broadcast(ctx, "updated")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := app.bot.Run(gctx, app.endpoint)
		// A console session ends when its input does; stop the scheduler too.
		cancelFunc()
		return err
	})

	if app.config.RemindersEnabled {
		schedule, err := app.config.Schedule()
		if err != nil {
			return err
		}
		s := reminder.NewScheduler(reminder.Config{
			Schedule:   schedule,
			Recipients: app.store,
			Texts:      app.resources,
			Sender:     app.endpoint,
			Logger:     app.logger,
		})
		g.Go(func() error { return s.Run(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := app.closeRepo(); cerr != nil {
		app.logger.Error(ctx, "failed to close storage", "error", cerr)
	}
	app.logger.Info(context.Background(), "Bot stopped")
	return err
}
