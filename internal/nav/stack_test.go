package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPush_SuppressesConsecutiveDuplicates(t *testing.T) {
	var st Stack
	assert.Equal(t, ScreenStart, st.Push(ScreenStart))
	assert.Equal(t, ScreenStart, st.Push(ScreenStart))
	assert.Equal(t, 1, st.Len())

	st.Push(ScreenProfile)
	st.Push(ScreenStart)
	assert.Equal(t, 3, st.Len())
	assert.Equal(t, []Screen{ScreenStart, ScreenProfile, ScreenStart}, st.Screens())
}

func TestPop(t *testing.T) {
	var st Stack
	top, ok := st.Pop()
	assert.False(t, ok)
	assert.Equal(t, ScreenNone, top)

	st.Push(ScreenStart)
	top, ok = st.Pop()
	assert.False(t, ok)
	assert.Equal(t, ScreenNone, top)
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, ScreenStart, st.Top())

	st.Push(ScreenSettings)
	st.Push(ScreenScale)
	top, ok = st.Pop()
	assert.True(t, ok)
	assert.Equal(t, ScreenSettings, top)
	assert.Equal(t, ScreenSettings, st.Top())
}

func TestReset(t *testing.T) {
	var st Stack
	st.Push(ScreenStart)
	st.Push(ScreenProfile)

	st.Reset(ScreenStart)
	assert.Equal(t, []Screen{ScreenStart}, st.Screens())

	st.Reset(ScreenNone)
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, ScreenNone, st.Top())
}

func TestScreenString(t *testing.T) {
	assert.Equal(t, "edit_picker", ScreenEditPicker.String())
	assert.Equal(t, "unknown", Screen(99).String())
}
