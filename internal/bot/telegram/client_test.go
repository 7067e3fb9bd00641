package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

type call struct {
	Method string
	Body   map[string]any
	Form   map[string]string
	File   string
}

type fakeAPI struct {
	t     *testing.T
	mu    sync.Mutex
	calls []call
	reply map[string]func(call) (int, string)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, reply: map[string]func(call) (int, string){}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/bottest-token/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	c := call{Method: strings.TrimPrefix(r.URL.Path, prefix)}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		require.NoError(f.t, r.ParseMultipartForm(1<<20))
		c.Form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			c.Form[k] = v[0]
		}
		file, _, err := r.FormFile("document")
		require.NoError(f.t, err)
		b, _ := io.ReadAll(file)
		c.File = string(b)
	} else {
		_ = json.NewDecoder(r.Body).Decode(&c.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	fn := f.reply[c.Method]
	f.mu.Unlock()

	status, body := http.StatusOK, `{"ok":true,"result":true}`
	if fn != nil {
		status, body = fn(c)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeAPI) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newClient(srv *httptest.Server) *Client {
	return New(Config{BaseURL: srv.URL, Token: "test-token", PollTimeout: time.Second})
}

func TestSendOrEdit_SendsNew(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply["sendMessage"] = func(call) (int, string) { return 200, `{"ok":true,"result":{"message_id":42}}` }
	c := newClient(srv)

	id, err := c.SendOrEdit(context.Background(), 7, "<b>hi</b>", transport.Options{
		ParseMode: transport.ParseModeHTML,
		Keyboard: &transport.Keyboard{Inline: true, Rows: [][]transport.Button{
			transport.Row(transport.Button{Text: "Next", Data: "flow:next"}),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	got := api.last()
	assert.Equal(t, "sendMessage", got.Method)
	assert.Equal(t, float64(7), got.Body["chat_id"])
	assert.Equal(t, "HTML", got.Body["parse_mode"])
	markup := got.Body["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	btn := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "flow:next", btn["callback_data"])
}

func TestSendOrEdit_EditsInPlace(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newClient(srv)

	id, err := c.SendOrEdit(context.Background(), 7, "step 2", transport.Options{EditTarget: 42})
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, []string{"editMessageText"}, api.methods())
	assert.Equal(t, float64(42), api.last().Body["message_id"])
}

func TestSendOrEdit_NotModifiedIsSuccess(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply["editMessageText"] = func(call) (int, string) {
		return 400, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`
	}
	c := newClient(srv)

	id, err := c.SendOrEdit(context.Background(), 7, "same", transport.Options{EditTarget: 42})
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, []string{"editMessageText"}, api.methods())
}

func TestSendOrEdit_FallsBackWhenEditFails(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply["editMessageText"] = func(call) (int, string) {
		return 400, `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`
	}
	api.reply["sendMessage"] = func(call) (int, string) { return 200, `{"ok":true,"result":{"message_id":43}}` }
	c := newClient(srv)

	id, err := c.SendOrEdit(context.Background(), 7, "again", transport.Options{EditTarget: 42})
	require.NoError(t, err)
	assert.Equal(t, 43, id)
	assert.Equal(t, []string{"editMessageText", "sendMessage"}, api.methods())
}

func TestSendOrEdit_ReplyKeyboardNeverEdits(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply["sendMessage"] = func(call) (int, string) { return 200, `{"ok":true,"result":{"message_id":5}}` }
	c := newClient(srv)

	_, err := c.SendOrEdit(context.Background(), 7, "menu", transport.Options{
		EditTarget: 42,
		Keyboard:   &transport.Keyboard{Rows: [][]transport.Button{transport.Row(transport.Button{Text: "Profile"})}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sendMessage"}, api.methods())
	markup := api.last().Body["reply_markup"].(map[string]any)
	assert.Equal(t, true, markup["resize_keyboard"])
}

func TestSendOrEdit_APIError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.reply["sendMessage"] = func(call) (int, string) {
		return 403, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	}
	c := newClient(srv)

	_, err := c.SendOrEdit(context.Background(), 7, "x", transport.Options{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Code)
	assert.Equal(t, "sendMessage", apiErr.Method)
}

func TestReplyMarkup_Remove(t *testing.T) {
	assert.Nil(t, replyMarkup(nil))
	assert.Equal(t, map[string]any{"remove_keyboard": true}, replyMarkup(&transport.Keyboard{Remove: true}))
}

func TestDeleteAndAnswer(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newClient(srv)

	require.NoError(t, c.Delete(context.Background(), 7, 42))
	require.NoError(t, c.AnswerCallback(context.Background(), "cb-1", ""))
	assert.Equal(t, []string{"deleteMessage", "answerCallbackQuery"}, api.methods())
	assert.Equal(t, "cb-1", api.last().Body["callback_query_id"])
	_, hasText := api.last().Body["text"]
	assert.False(t, hasText)
}

func TestSendDocument(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newClient(srv)

	err := c.SendDocument(context.Background(), 7, "members.xlsx", strings.NewReader("xlsx-bytes"), "2 profiles")
	require.NoError(t, err)

	got := api.last()
	assert.Equal(t, "sendDocument", got.Method)
	assert.Equal(t, "7", got.Form["chat_id"])
	assert.Equal(t, "2 profiles", got.Form["caption"])
	assert.Equal(t, "xlsx-bytes", got.File)
}

func TestRun_DeliversEventsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	api, srv := newFakeAPI(t)
	var mu sync.Mutex
	polls := 0
	var offsets []float64
	api.reply["getUpdates"] = func(c call) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		offsets = append(offsets, c.Body["offset"].(float64))
		if polls == 1 {
			return 200, `{"ok":true,"result":[
				{"update_id":10,"message":{"message_id":1,"from":{"id":5,"username":"sara"},"chat":{"id":5},"text":"hello","entities":[{"type":"bold","offset":0,"length":5}]}},
				{"update_id":11,"callback_query":{"id":"cb","from":{"id":5},"message":{"message_id":9,"chat":{"id":5}},"data":"flow:next"}},
				{"update_id":12,"edited_message":{"message_id":1}}
			]}`
		}
		return 200, `{"ok":true,"result":[]}`
	}
	c := newClient(srv)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan transport.Event, 2)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, ev transport.Event) { events <- ev })
	}()

	var got []transport.Event
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(3 * time.Second):
			t.Fatal("events not delivered")
		}
	}
	cancel()
	require.NoError(t, <-done)
	srv.CloseClientConnections()

	var msg, cb transport.Event
	for _, ev := range got {
		if ev.IsCallback() {
			cb = ev
		} else {
			msg = ev
		}
	}
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "sara", msg.Username)
	assert.Equal(t, []transport.Entity{{Type: "bold", Offset: 0, Length: 5}}, msg.Entities)
	assert.Equal(t, "flow:next", cb.Data)
	assert.Equal(t, 9, cb.MessageID)
	assert.Equal(t, int64(5), cb.ChatID)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(offsets), 2)
	assert.Equal(t, float64(0), offsets[0])
	assert.Equal(t, float64(13), offsets[1])
}

func TestRun_SameChatEventsHandledInOrder(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	api, srv := newFakeAPI(t)
	var pollMu sync.Mutex
	polls := 0
	api.reply["getUpdates"] = func(call) (int, string) {
		pollMu.Lock()
		defer pollMu.Unlock()
		polls++
		if polls == 1 {
			return 200, `{"ok":true,"result":[
				{"update_id":1,"message":{"message_id":1,"from":{"id":5},"chat":{"id":5},"text":"Ana"}},
				{"update_id":2,"message":{"message_id":2,"from":{"id":6},"chat":{"id":6},"text":"other"}},
				{"update_id":3,"message":{"message_id":3,"from":{"id":5},"chat":{"id":5},"text":"Lopez"}}
			]}`
		}
		return 200, `{"ok":true,"result":[]}`
	}
	c := newClient(srv)

	release := make(chan struct{})
	started := make(chan string, 3)
	var mu sync.Mutex
	active := map[int64]int{}
	overlap := false
	var finished []string
	h := func(_ context.Context, ev transport.Event) {
		mu.Lock()
		active[ev.ChatID]++
		if active[ev.ChatID] > 1 {
			overlap = true
		}
		mu.Unlock()
		started <- ev.Text
		if ev.Text == "Ana" {
			<-release
		}
		mu.Lock()
		active[ev.ChatID]--
		finished = append(finished, ev.Text)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, h) }()

	next := func() string {
		select {
		case s := <-started:
			return s
		case <-time.After(3 * time.Second):
			t.Fatal("event not delivered")
			return ""
		}
	}

	// Another chat is not held up by the blocked one.
	assert.ElementsMatch(t, []string{"Ana", "other"}, []string{next(), next()})
	select {
	case s := <-started:
		t.Fatalf("%q started while an earlier event of its chat was still running", s)
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "Lopez", next())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finished) == 3
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	srv.CloseClientConnections()

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, overlap)
	var chat5 []string
	for _, s := range finished {
		if s != "other" {
			chat5 = append(chat5, s)
		}
	}
	assert.Equal(t, []string{"Ana", "Lopez"}, chat5)
}

func TestDispatcher_QueuesAcrossSubmits(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var got []string
	gate := make(chan struct{})
	g := new(errgroup.Group)
	d := newDispatcher(context.Background(), g, func(_ context.Context, ev transport.Event) {
		if ev.Text == "1" {
			<-gate
		}
		mu.Lock()
		got = append(got, ev.Text)
		mu.Unlock()
	})

	d.submit(transport.Event{ChatID: 7, Text: "1"})
	d.submit(transport.Event{ChatID: 7, Text: "2"})
	d.submit(transport.Event{ChatID: 7, Text: "3"})
	close(gate)
	require.NoError(t, g.Wait())

	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Empty(t, d.pending)
}

// droppingServer closes every connection before replying, so each attempt
// fails at the transport level.
func droppingServer(t *testing.T) (*httptest.Server, func(method string) int) {
	var mu sync.Mutex
	attempts := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts[path.Base(r.URL.Path)]++
		mu.Unlock()
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)
	return srv, func(method string) int {
		mu.Lock()
		defer mu.Unlock()
		return attempts[method]
	}
}

func TestSendOrEdit_NotRepeatedAfterTransportError(t *testing.T) {
	srv, attempts := droppingServer(t)
	c := newClient(srv)

	_, err := c.SendOrEdit(context.Background(), 7, "hello", transport.Options{})
	require.Error(t, err)
	assert.Equal(t, 1, attempts("sendMessage"))

	require.Error(t, c.SendDocument(context.Background(), 7, "a.xlsx", strings.NewReader("x"), ""))
	assert.Equal(t, 1, attempts("sendDocument"))
}

func TestDelete_RetriedAfterTransportError(t *testing.T) {
	srv, attempts := droppingServer(t)
	c := newClient(srv)

	require.Error(t, c.Delete(context.Background(), 7, 3))
	assert.Equal(t, 3, attempts("deleteMessage"))
}

func TestRetryable(t *testing.T) {
	resp := func(url string, status int) *resty.Response {
		return &resty.Response{
			Request:     &resty.Request{URL: url},
			RawResponse: &http.Response{StatusCode: status},
		}
	}
	base := "https://api.telegram.org/botT/"

	assert.True(t, retryable(resp(base+"getUpdates", 502), nil))
	assert.True(t, retryable(resp(base+"editMessageText", 429), nil))
	assert.False(t, retryable(resp(base+"editMessageText", 400), nil))
	assert.False(t, retryable(resp(base+"sendMessage", 502), nil))
	assert.False(t, retryable(resp(base+"sendDocument", 0), io.ErrUnexpectedEOF))
	assert.True(t, retryable(resp(base+"deleteMessage", 0), io.ErrUnexpectedEOF))
	assert.False(t, retryable(nil, io.ErrUnexpectedEOF))
}
