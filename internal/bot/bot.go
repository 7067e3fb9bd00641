// Package bot wires the profile workflow to a chat transport: it owns the
// per-chat sessions, routes every inbound event to an entry action or the
// step flow, and runs the administrator features.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/codec"
	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/flow"
	"github.com/dmitrijs2005/symbiobot/internal/logging"
	"github.com/dmitrijs2005/symbiobot/internal/nav"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/resources"
	"github.com/dmitrijs2005/symbiobot/internal/roles"
	"github.com/dmitrijs2005/symbiobot/internal/session"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"github.com/google/uuid"
)

// newEventID is a test seam for uuid.NewString.
var newEventID = uuid.NewString

// Publisher stores an export and returns a download link.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) (string, error)
	LinkLifetime() time.Duration
}

type Config struct {
	Store     *profiles.Store
	Resources *resources.Resources
	Sender    transport.Sender
	Codec     *codec.Codec
	Logger    logging.Logger

	AdminID       int64
	AdminUsername string
	ClubName      string
	// ExportName is the file name of the spreadsheet export.
	ExportName string
	// Publisher is optional; without it exports are only sent as documents.
	Publisher Publisher
	// Concurrency bounds broadcast fan-out.
	Concurrency int
}

// Action is an entry action: it handles an event on behalf of one screen
// and returns the screen the session ends up on.
type Action func(ctx context.Context, s *session.Session, ev transport.Event) (nav.Screen, error)

// Bot handles events for every chat.
type Bot struct {
	cfg        Config
	store      *profiles.Store
	res        *resources.Resources
	sender     transport.Sender
	log        logging.Logger
	ctrl       *flow.Controller
	sessions   *session.Registry
	classifier roles.Classifier

	actions map[string]Action
}

func New(cfg Config) (*Bot, error) {
	if cfg.Store == nil || cfg.Resources == nil || cfg.Sender == nil {
		return nil, errors.New("bot: store, resources and sender are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.New()
	}
	if cfg.ExportName == "" {
		cfg.ExportName = "members.xlsx"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	b := &Bot{
		cfg:        cfg,
		store:      cfg.Store,
		res:        cfg.Resources,
		sender:     cfg.Sender,
		log:        cfg.Logger,
		sessions:   session.NewRegistry(),
		classifier: roles.Classifier{AdminID: cfg.AdminID},
	}
	b.ctrl = flow.NewController(flow.Config{
		Store:        cfg.Store,
		Texts:        cfg.Resources,
		Sender:       cfg.Sender,
		Codec:        cfg.Codec,
		Logger:       cfg.Logger,
		AdminContact: b.adminContact(),
		OnSignedUp:   b.announceSignup,
	})
	b.actions = map[string]Action{
		ActionStart:       b.start,
		ActionShowProfile: b.showProfile,
		ActionEditProfile: b.editProfile,
		ActionSettings:    b.settings,
		ActionContent:     b.content,
		ActionAdminExport: b.export,
		ActionAbout:       b.about,
		ActionBack:        b.back,
		ActionSignup:      b.signup,
		ActionScale:       b.scale,
		ActionScaleUp:     b.scaleUp,
		ActionScaleDown:   b.scaleDown,
		ActionReminder:    b.toggleReminder,
		ActionCancel:      b.cancel,
		ActionEditContent: b.editContent,
	}
	return b, nil
}

// Entry action names.
const (
	ActionStart       = "start"
	ActionShowProfile = "show-profile"
	ActionEditProfile = "edit-profile"
	ActionSettings    = "settings"
	ActionContent     = "content"
	ActionAdminExport = "admin-export"
	ActionAbout       = "about"
	ActionBack        = "back"
	ActionSignup      = "signup"
	ActionScale       = "scale"
	ActionScaleUp     = "scale-up"
	ActionScaleDown   = "scale-down"
	ActionReminder    = "reminder"
	ActionCancel      = "cancel"
	ActionEditContent = "edit-content"
)

// Callback payloads of menu buttons.
const (
	DataMenu   = "menu:"
	DataVerify = "verify:"
	DataReject = "reject:"
)

// Action returns the entry action registered under name.
func (b *Bot) Action(name string) (Action, bool) {
	a, ok := b.actions[name]
	return a, ok
}

// Run feeds events from src into the bot until ctx is done.
func (b *Bot) Run(ctx context.Context, src transport.Source) error {
	return src.Run(ctx, b.Handle)
}

// Handle processes one event. Failures are logged and reported to the chat;
// they never escape.
func (b *Bot) Handle(ctx context.Context, ev transport.Event) {
	if ev.ID == "" {
		ev.ID = newEventID()
	}
	ctx = logging.WithEventID(ctx, ev.ID)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error(ctx, "event handler panicked", "chat_id", ev.ChatID, "panic", fmt.Sprint(r))
		}
	}()

	s, release := b.sessions.Acquire(ev.ChatID, ev.UserID)
	defer release()
	s.UserID = ev.UserID
	if ev.Username != "" {
		s.Username = ev.Username
	}
	if s.Nav.Len() == 0 {
		s.Nav.Push(nav.ScreenStart)
	}

	screen, err := b.route(ctx, s, ev)
	if ev.IsCallback() {
		if aerr := b.sender.AnswerCallback(ctx, ev.CallbackID, ""); aerr != nil {
			b.log.Debug(ctx, "answer callback failed", "error", aerr)
		}
	}

	switch {
	case errors.Is(err, common.ErrorUnknownCode):
		b.log.Warn(ctx, "stale callback", "chat_id", ev.ChatID, "data", ev.Data)
		b.notify(ctx, s.ChatID, b.res.Format("stale_action"))
	case errors.Is(err, common.ErrorPersistence):
		b.log.Error(ctx, "change not persisted", "chat_id", ev.ChatID, "error", err)
	case err != nil:
		b.log.Error(ctx, "event failed", "chat_id", ev.ChatID, "screen", screen, "error", err)
	default:
		b.log.Debug(ctx, "event handled", "chat_id", ev.ChatID, "screen", screen, "history", s.Nav.Screens(), "took", time.Since(started))
	}
}

func (b *Bot) route(ctx context.Context, s *session.Session, ev transport.Event) (nav.Screen, error) {
	if ev.IsCallback() {
		return b.routeCallback(ctx, s, ev)
	}

	text := strings.TrimSpace(ev.Text)
	if flow.Active(s) {
		if name, ok := b.flowCommand(text); ok {
			return b.actions[name](ctx, s, ev)
		}
		if strings.HasPrefix(text, "/") || b.isMenuLabel(s, text) {
			b.notify(ctx, s.ChatID, b.res.Format("flow_busy", "cancel", "/cancel"))
			return s.Nav.Top(), nil
		}
		if res, ok, err := b.ctrl.Handle(ctx, s, ev); ok {
			return res.Screen, err
		}
	}

	if s.Nav.Top() == nav.ScreenContentEdit && !strings.HasPrefix(text, "/") && text != b.res.Button("back") {
		return b.saveContent(ctx, s, ev)
	}

	if name, ok := b.commandAction(text); ok {
		return b.actions[name](ctx, s, ev)
	}
	if strings.HasPrefix(text, "/signup") {
		return b.signupForm(ctx, s, ev)
	}
	if name, ok := b.labelAction(s, text); ok {
		return b.actions[name](ctx, s, ev)
	}

	switch s.Nav.Top() {
	case nav.ScreenContent:
		if c, ok := b.res.CategoryByTitle(text); ok {
			return b.openCategory(ctx, s, c)
		}
	case nav.ScreenContentList:
		if it, ok := b.res.Item(s.Content.Category, text); ok {
			return b.showItem(ctx, s, it)
		}
	}

	b.notify(ctx, s.ChatID, b.res.Format("unknown_input"))
	return s.Nav.Top(), nil
}

func (b *Bot) routeCallback(ctx context.Context, s *session.Session, ev transport.Event) (nav.Screen, error) {
	switch data := ev.Data; {
	case strings.HasPrefix(data, DataVerify):
		return b.verify(ctx, s, ev, strings.TrimPrefix(data, DataVerify), true)
	case strings.HasPrefix(data, DataReject):
		return b.verify(ctx, s, ev, strings.TrimPrefix(data, DataReject), false)
	case strings.HasPrefix(data, DataMenu):
		if a, ok := b.actions[strings.TrimPrefix(data, DataMenu)]; ok {
			return a(ctx, s, ev)
		}
	}
	if res, ok, err := b.ctrl.Handle(ctx, s, ev); ok {
		return res.Screen, err
	}
	return s.Nav.Top(), fmt.Errorf("callback %q: %w", ev.Data, common.ErrorUnknownCode)
}

var commands = map[string]string{
	"/start":  ActionStart,
	"/about":  ActionAbout,
	"/export": ActionAdminExport,
	"/cancel": ActionCancel,
	"/back":   ActionBack,
}

func (b *Bot) commandAction(text string) (string, bool) {
	name, ok := commands[text]
	if !ok && text == "/signup" {
		return ActionSignup, true
	}
	return name, ok
}

// flowCommand reports the commands that may interrupt an active flow.
// /start ends it and shows the main menu; /cancel, /back and the back button
// end it in place.
func (b *Bot) flowCommand(text string) (string, bool) {
	switch text {
	case "/start":
		return ActionStart, true
	case "/cancel", "/back", b.res.Button("back"):
		return ActionCancel, true
	}
	return "", false
}

// isMenuLabel reports whether text is a reply-keyboard label rather than
// something the user typed.
func (b *Bot) isMenuLabel(s *session.Session, text string) bool {
	_, ok := b.labelAction(s, text)
	return ok
}

// labelAction maps a reply-keyboard label to its action. Labels that only
// make sense on one screen are matched there only.
func (b *Bot) labelAction(s *session.Session, text string) (string, bool) {
	global := map[string]string{
		"profile":  ActionShowProfile,
		"content":  ActionContent,
		"settings": ActionSettings,
		"about":    ActionAbout,
		"export":   ActionAdminExport,
		"back":     ActionBack,
		"signup":   ActionSignup,
	}
	for key, action := range global {
		if text == b.res.Button(key) {
			return action, true
		}
	}
	switch s.Nav.Top() {
	case nav.ScreenSettings:
		switch text {
		case b.res.Button("scale"):
			return ActionScale, true
		case b.res.Button("reminder_on"), b.res.Button("reminder_off"):
			return ActionReminder, true
		}
	case nav.ScreenScale:
		switch text {
		case b.res.Button("scale_up"):
			return ActionScaleUp, true
		case b.res.Button("scale_down"):
			return ActionScaleDown, true
		}
	}
	return "", false
}

func (b *Bot) adminContact() string {
	if b.cfg.AdminUsername != "" {
		return "@" + strings.TrimPrefix(b.cfg.AdminUsername, "@")
	}
	return "the administrator"
}

func (b *Bot) role(userID int64) (roles.Role, *profiles.Profile) {
	p, _ := b.store.Get(userID)
	return b.classifier.Classify(userID, p), p
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, kb *transport.Keyboard) (int, error) {
	return b.sender.SendOrEdit(ctx, chatID, text, transport.Options{Keyboard: kb, ParseMode: transport.ParseModeHTML})
}

// notify sends a best-effort notice.
func (b *Bot) notify(ctx context.Context, chatID int64, text string) {
	if _, err := b.send(ctx, chatID, text, nil); err != nil {
		b.log.Warn(ctx, "failed to send notice", "chat_id", chatID, "error", err)
	}
}
