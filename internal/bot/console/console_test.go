package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlain(t *testing.T) {
	assert.Equal(t, "First name : Sara & co", Plain("<b>First name</b> : Sara &amp; co"))
}

func TestSendOrEdit_PrintsAndNumbersButtons(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out, 1, "sara")

	id, err := c.SendOrEdit(context.Background(), 1, "<b>Hello</b>", transport.Options{
		Keyboard: &transport.Keyboard{Inline: true, Rows: [][]transport.Button{
			transport.Row(transport.Button{Text: "Next", Data: "flow:next"}, transport.Button{Text: "Cancel", Data: "flow:cancel"}),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = c.SendOrEdit(context.Background(), 1, "again", transport.Options{EditTarget: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	got := out.String()
	assert.Contains(t, got, "--- #1\nHello\n")
	assert.Contains(t, got, "[1] Next  [2] Cancel")
	assert.Contains(t, got, "--- #1 (edited)")
}

func TestRun_EventsAndButtons(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader(strings.Join([]string{
		"/start",
		"#2",
		"#9",
		"",
		"/as 999 admin",
		"hi",
		"/quit",
		"never read",
	}, "\n"))
	c := New(in, &out, 1001, "sara")

	var events []transport.Event
	err := c.Run(context.Background(), func(ctx context.Context, ev transport.Event) {
		events = append(events, ev)
		if ev.Text == "/start" {
			_, _ = c.SendOrEdit(ctx, ev.ChatID, "menu", transport.Options{
				Keyboard: &transport.Keyboard{Inline: true, Rows: [][]transport.Button{
					transport.Row(transport.Button{Text: "A", Data: "a"}, transport.Button{Text: "B", Data: "b"}),
				}},
			})
		}
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "/start", events[0].Text)
	assert.Equal(t, int64(1001), events[0].UserID)
	assert.True(t, events[1].IsCallback())
	assert.Equal(t, "b", events[1].Data)
	assert.Equal(t, "hi", events[2].Text)
	assert.Equal(t, int64(999), events[2].UserID)
	assert.Equal(t, "admin", events[2].Username)
	assert.Contains(t, out.String(), "No such button: #9")
	assert.Contains(t, out.String(), "Bye!")
}

func TestRun_ReplyButtonSendsLabel(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("#1\n"), &out, 1, "")
	_, _ = c.SendOrEdit(context.Background(), 1, "menu", transport.Options{
		Keyboard: &transport.Keyboard{Rows: [][]transport.Button{transport.Row(transport.Button{Text: "Profile"})}},
	})

	var got transport.Event
	require.NoError(t, c.Run(context.Background(), func(_ context.Context, ev transport.Event) { got = ev }))
	assert.False(t, got.IsCallback())
	assert.Equal(t, "Profile", got.Text)
}

func TestRun_PromptOnTerminal(t *testing.T) {
	orig := isTerminal
	isTerminal = func(int) bool { return true }
	t.Cleanup(func() { isTerminal = orig })

	f, err := os.CreateTemp(t.TempDir(), "in")
	require.NoError(t, err)
	_, _ = f.WriteString("/quit\n")
	_, _ = f.Seek(0, 0)
	defer f.Close()

	var out bytes.Buffer
	require.NoError(t, New(f, &out, 7, "").Run(context.Background(), func(context.Context, transport.Event) {}))
	assert.True(t, strings.HasPrefix(out.String(), "7> "))
}

func TestSendDocument_WritesFile(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out, 1, "")
	c.DownloadDir = filepath.Join(dir, "downloads")

	path := filepath.Join(dir, "downloads", "members.xlsx")
	require.NoError(t, c.SendDocument(context.Background(), 1, "members.xlsx", strings.NewReader("abc"), "3 profiles"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Contains(t, out.String(), "(3 bytes) 3 profiles")
}
