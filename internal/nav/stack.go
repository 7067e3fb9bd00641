// Package nav keeps the per-session history of logical screens that backs
// "back" navigation.
package nav

// Screen tags one logical menu screen.
type Screen int

const (
	ScreenNone Screen = iota
	ScreenStart
	ScreenProfile
	ScreenSignup
	ScreenEditPicker
	ScreenEditField
	ScreenSettings
	ScreenScale
	ScreenContent
	ScreenContentList
	ScreenContentEdit
	ScreenExport
	ScreenAbout
)

var screenNames = map[Screen]string{
	ScreenNone:        "none",
	ScreenStart:       "start",
	ScreenProfile:     "profile",
	ScreenSignup:      "signup",
	ScreenEditPicker:  "edit_picker",
	ScreenEditField:   "edit_field",
	ScreenSettings:    "settings",
	ScreenScale:       "scale",
	ScreenContent:     "content",
	ScreenContentList: "content_list",
	ScreenContentEdit: "content_edit",
	ScreenExport:      "export",
	ScreenAbout:       "about",
}

func (s Screen) String() string {
	if n, ok := screenNames[s]; ok {
		return n
	}
	return "unknown"
}

// Stack is a session's screen history; the last element is the current
// screen. The zero value is an empty stack. A Stack is not safe for
// concurrent use; sessions serialize access to it.
type Stack struct {
	items []Screen
}

// Push makes s the current screen unless it already is.
func (st *Stack) Push(s Screen) Screen {
	if n := len(st.items); n > 0 && st.items[n-1] == s {
		return s
	}
	st.items = append(st.items, s)
	return s
}

// Pop drops the current screen and returns the one below it. A stack with
// one element or none is left unchanged and Pop reports false.
func (st *Stack) Pop() (Screen, bool) {
	if len(st.items) <= 1 {
		return ScreenNone, false
	}
	st.items = st.items[:len(st.items)-1]
	return st.items[len(st.items)-1], true
}

// Top returns the current screen, or ScreenNone if the stack is empty.
func (st *Stack) Top() Screen {
	if len(st.items) == 0 {
		return ScreenNone
	}
	return st.items[len(st.items)-1]
}

func (st *Stack) Len() int { return len(st.items) }

// Reset empties the stack and, when root is not ScreenNone, pushes it.
func (st *Stack) Reset(root Screen) {
	st.items = st.items[:0]
	if root != ScreenNone {
		st.items = append(st.items, root)
	}
}

// Screens returns a copy of the history, bottom first.
func (st *Stack) Screens() []Screen {
	out := make([]Screen, len(st.items))
	copy(out, st.items)
	return out
}
