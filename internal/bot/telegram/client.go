// Package telegram implements the chat transport over the Telegram Bot API:
// outbound messages through Client and inbound events through long polling.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/logging"
	"github.com/dmitrijs2005/symbiobot/internal/transport"
	"github.com/go-resty/resty/v2"
)

// APIError is an unsuccessful Bot API reply.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// NotModified reports whether the edit changed nothing.
func (e *APIError) NotModified() bool {
	return strings.Contains(e.Description, "message is not modified")
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type Config struct {
	BaseURL     string
	Token       string
	PollTimeout time.Duration
	Logger      logging.Logger
}

// Client talks to one bot.
type Client struct {
	http        *resty.Client
	log         logging.Logger
	pollTimeout time.Duration
}

var _ transport.Sender = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/bot"+cfg.Token).
		SetTimeout(cfg.PollTimeout+10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		AddRetryCondition(retryable).
		SetHeader("Accept", "application/json")

	return &Client{http: rc, log: cfg.Logger, pollTimeout: cfg.PollTimeout}
}

// idempotent lists the methods that are safe to repeat after a failed
// attempt. A repeated send may deliver the message twice.
var idempotent = map[string]bool{
	"getUpdates":          true,
	"editMessageText":     true,
	"deleteMessage":       true,
	"answerCallbackQuery": true,
}

func retryable(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || !idempotent[path.Base(resp.Request.URL)] {
		return false
	}
	return err != nil || resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
}

// call posts a JSON body to method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	return c.do(ctx, method, c.http.R().SetContext(ctx).SetBody(body), out)
}

func (c *Client) do(ctx context.Context, method string, req *resty.Request, out any) error {
	var res apiResponse
	resp, err := req.SetResult(&res).SetError(&res).Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if !res.OK {
		apiErr := &APIError{Method: method, Code: res.ErrorCode, Description: res.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode()
		}
		return apiErr
	}
	if out != nil && len(res.Result) > 0 {
		if err := json.Unmarshal(res.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

type sentMessage struct {
	MessageID int `json:"message_id"`
}

// SendOrEdit edits opts.EditTarget when set and falls back to a new
// message if the target can no longer be edited. Reply keyboards cannot be
// attached to edits, so they always produce a new message.
func (c *Client) SendOrEdit(ctx context.Context, chatID int64, text string, opts transport.Options) (int, error) {
	markup := replyMarkup(opts.Keyboard)
	canEdit := opts.EditTarget != 0 && (opts.Keyboard == nil || opts.Keyboard.Inline)

	if canEdit {
		body := map[string]any{
			"chat_id":    chatID,
			"message_id": opts.EditTarget,
			"text":       text,
		}
		if opts.ParseMode != "" {
			body["parse_mode"] = opts.ParseMode
		}
		if markup != nil {
			body["reply_markup"] = markup
		}
		err := c.call(ctx, "editMessageText", body, nil)
		if err == nil {
			return opts.EditTarget, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotModified() {
			return opts.EditTarget, nil
		}
		c.log.Debug(ctx, "edit failed, sending new message", "chat_id", chatID, "error", err)
	}

	body := map[string]any{"chat_id": chatID, "text": text}
	if opts.ParseMode != "" {
		body["parse_mode"] = opts.ParseMode
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg sentMessage
	if err := c.call(ctx, "sendMessage", body, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, name string, r io.Reader, caption string) error {
	req := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": strconv.FormatInt(chatID, 10),
			"caption": caption,
		}).
		SetFileReader("document", name, r)
	return c.do(ctx, "sendDocument", req, nil)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyButton struct {
	Text string `json:"text"`
}

func replyMarkup(kb *transport.Keyboard) any {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return map[string]any{"remove_keyboard": true}
	case kb.Inline:
		rows := make([][]inlineButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]inlineButton, 0, len(r))
			for _, b := range r {
				row = append(row, inlineButton{Text: b.Text, CallbackData: b.Data})
			}
			rows = append(rows, row)
		}
		return map[string]any{"inline_keyboard": rows}
	default:
		rows := make([][]replyButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]replyButton, 0, len(r))
			for _, b := range r {
				row = append(row, replyButton{Text: b.Text})
			}
			rows = append(rows, row)
		}
		return map[string]any{"keyboard": rows, "resize_keyboard": true}
	}
}
