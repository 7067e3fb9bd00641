// Package console is a local chat transport: a read-eval-print loop on a
// terminal standing in for one chat, used for trying the bot without a
// Bot API token.
package console

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/symbiobot/internal/filex"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

var tagRe = regexp.MustCompile(`<[^>]+>`)

// Plain strips HTML markup for display.
func Plain(s string) string {
	return html.UnescapeString(tagRe.ReplaceAllString(s, ""))
}

// Console reads events from in and prints outbound messages to out.
type Console struct {
	in  io.Reader
	out io.Writer

	// DownloadDir receives documents sent to the chat.
	DownloadDir string

	mu       sync.Mutex
	userID   int64
	username string
	nextID   int
	buttons  []transport.Button
	inline   bool
	callback int
}

var (
	_ transport.Sender = (*Console)(nil)
	_ transport.Source = (*Console)(nil)
)

func New(in io.Reader, out io.Writer, userID int64, username string) *Console {
	return &Console{in: in, out: out, userID: userID, username: username, DownloadDir: "downloads"}
}

func (c *Console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) SendOrEdit(_ context.Context, chatID int64, text string, opts transport.Options) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := opts.EditTarget
	if id == 0 {
		c.nextID++
		id = c.nextID
		c.println(fmt.Sprintf("--- #%d", id))
	} else {
		c.println(fmt.Sprintf("--- #%d (edited)", id))
	}
	c.println(Plain(text))

	if kb := opts.Keyboard; kb != nil {
		if kb.Remove {
			c.buttons = nil
			return id, nil
		}
		c.buttons = c.buttons[:0]
		c.inline = kb.Inline
		for _, row := range kb.Rows {
			var labels []string
			for _, b := range row {
				c.buttons = append(c.buttons, b)
				labels = append(labels, fmt.Sprintf("[%d] %s", len(c.buttons), b.Text))
			}
			c.println("   " + strings.Join(labels, "  "))
		}
	}
	return id, nil
}

func (c *Console) Delete(_ context.Context, _ int64, messageID int) error {
	c.println(fmt.Sprintf("--- #%d deleted", messageID))
	return nil
}

func (c *Console) SendDocument(_ context.Context, _ int64, name string, r io.Reader, caption string) error {
	dir, err := filex.EnsureDir(c.DownloadDir)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		return err
	}
	c.println(fmt.Sprintf("--- document %s (%d bytes) %s", path, n, Plain(caption)))
	return nil
}

func (c *Console) AnswerCallback(_ context.Context, _ string, text string) error {
	if text != "" {
		c.println("(" + text + ")")
	}
	return nil
}

// Run reads lines until EOF or "/quit". "#N" presses button N of the last
// keyboard; "/as <id> [username]" switches the acting user. Every other line
// is sent as a text message.
func (c *Console) Run(ctx context.Context, h transport.Handler) error {
	prompt := false
	if f, ok := c.in.(*os.File); ok {
		prompt = isTerminal(int(f.Fd()))
	}

	sc := bufio.NewScanner(c.in)
	for {
		if prompt {
			fmt.Fprintf(c.out, "%d> ", c.userID)
		}
		if ctx.Err() != nil || !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		ev, ok, quit := c.parse(line)
		if quit {
			c.println("Bye!")
			return nil
		}
		if ok {
			h(ctx, ev)
		}
	}
}

func (c *Console) parse(line string) (transport.Event, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev := transport.Event{ChatID: c.userID, UserID: c.userID, Username: c.username}
	switch {
	case line == "/quit" || line == "/exit":
		return ev, false, true

	case strings.HasPrefix(line, "/as "):
		parts := strings.Fields(line)
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			c.println("Bad user id:", parts[1])
			return ev, false, false
		}
		c.userID = id
		c.username = ""
		if len(parts) > 2 {
			c.username = parts[2]
		}
		c.buttons = nil
		c.println(fmt.Sprintf("Acting as user %d", id))
		return ev, false, false

	case strings.HasPrefix(line, "#"):
		n, err := strconv.Atoi(line[1:])
		if err != nil || n < 1 || n > len(c.buttons) {
			c.println("No such button:", line)
			return ev, false, false
		}
		b := c.buttons[n-1]
		if c.inline {
			c.callback++
			ev.CallbackID = strconv.Itoa(c.callback)
			ev.Data = b.Data
			ev.MessageID = c.nextID
		} else {
			ev.Text = b.Text
		}
		return ev, true, false
	}

	c.nextID++
	ev.MessageID = c.nextID
	ev.Text = line
	return ev, true, false
}
