// Package session holds per-chat conversational state: the screen history,
// the active step flow, and the small amount of scratch the menus need.
package session

import (
	"sync"

	"github.com/dmitrijs2005/symbiobot/internal/nav"
)

// FlowMode distinguishes sequential sign-up from random-access editing.
type FlowMode int

const (
	ModeSignup FlowMode = iota + 1
	ModeEdit
)

func (m FlowMode) String() string {
	switch m {
	case ModeSignup:
		return "signup"
	case ModeEdit:
		return "edit"
	}
	return "none"
}

// FlowState is the scratch record of one in-progress sign-up or edit. It is
// created when the flow begins and dropped when it completes or is
// cancelled.
type FlowState struct {
	Mode FlowMode
	// Step is the schema index awaiting input in sign-up mode.
	Step int
	// Field is the field being edited; empty while on the field picker.
	Field string
	// MessageID is the one message every re-render edits.
	MessageID int
	// ReturnTo is the screen shown before the flow began.
	ReturnTo nav.Screen
}

// ContentState remembers what the content browser is showing.
type ContentState struct {
	Category string
	Item     string
}

// Session is the state of one chat. Callers must hold the lock returned by
// Registry.Acquire while reading or writing it.
type Session struct {
	ChatID   int64
	UserID   int64
	Username string

	Nav     nav.Stack
	Flow    *FlowState
	Content ContentState

	// ScaleMessageID is the preview message edited by the scale screen.
	ScaleMessageID int

	mu sync.Mutex
}

// Registry hands out sessions keyed by chat id and serializes events per
// chat.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

// Acquire returns the locked session for chatID, creating it on first use.
// The caller must invoke the returned release function.
func (r *Registry) Acquire(chatID, userID int64) (*Session, func()) {
	r.mu.Lock()
	s, ok := r.sessions[chatID]
	if !ok {
		s = &Session{ChatID: chatID, UserID: userID}
		r.sessions[chatID] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	return s, s.mu.Unlock
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
