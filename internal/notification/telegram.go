package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-buybot/internal/model"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// ErrTelegram classifies every Bot API failure.
var ErrTelegram = errors.New("telegram")

// APIError is a Bot API response with ok=false or a non-2xx status.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int // seconds, set on 429
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %s: %d %s (retry after %ds)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

func (e *APIError) Is(target error) bool { return target == ErrTelegram }

// Telegram is a minimal Bot API client over net/http.
type Telegram struct {
	baseURL    string
	token      string
	client     *http.Client
	pollClient *http.Client // longer timeout for getUpdates long polling
}

// NewTelegram creates a client. apiURL may be empty for DefaultAPIURL.
// sendTimeout bounds every non-polling call.
func NewTelegram(token, apiURL string, sendTimeout time.Duration) *Telegram {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Telegram{
		baseURL:    strings.TrimRight(apiURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: sendTimeout},
		pollClient: &http.Client{Timeout: 70 * time.Second},
	}
}

// InlineButton is one inline keyboard button; exactly one of URL or
// CallbackData should be set.
type InlineButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// InlineKeyboard is a reply_markup with inline buttons.
type InlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

// Update is the subset of a Bot API update the bot consumes.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64       `json:"message_id"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size,omitempty"`
}

// CallbackQuery is an inline button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send delivers a composed alert. Messages with a PhotoID go out as a photo
// with the text as caption. It implements model.MessageSender.
func (t *Telegram) Send(ctx context.Context, msg model.Message) error {
	payload := map[string]any{
		"chat_id":    msg.ChatID,
		"parse_mode": "MarkdownV2",
	}
	if kb := keyboardFor(msg.Buttons); kb != nil {
		payload["reply_markup"] = kb
	}

	if msg.PhotoID != "" {
		payload["photo"] = msg.PhotoID
		payload["caption"] = msg.Text
		return t.call(ctx, t.client, "sendPhoto", payload, nil)
	}

	payload["text"] = msg.Text
	payload["disable_web_page_preview"] = true
	return t.call(ctx, t.client, "sendMessage", payload, nil)
}

// Reply sends a MarkdownV2 text to chatID with an optional keyboard.
func (t *Telegram) Reply(ctx context.Context, chatID int64, text string, kb *InlineKeyboard) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	return t.call(ctx, t.client, "sendMessage", payload, nil)
}

// AnswerCallbackQuery acknowledges a button press so the client stops its spinner.
func (t *Telegram) AnswerCallbackQuery(ctx context.Context, id, text string) error {
	payload := map[string]any{"callback_query_id": id}
	if text != "" {
		payload["text"] = text
	}
	return t.call(ctx, t.client, "answerCallbackQuery", payload, nil)
}

// DeleteWebhook removes any active webhook so that getUpdates works.
// Safe to call when no webhook is set.
func (t *Telegram) DeleteWebhook(ctx context.Context) error {
	return t.call(ctx, t.client, "deleteWebhook", map[string]any{}, nil)
}

// GetUpdates long-polls for messages and button presses. It returns the
// updates and the next offset to use.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, int64, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := t.call(ctx, t.pollClient, "getUpdates", payload, &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID+1 > next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

func (t *Telegram) call(ctx context.Context, client *http.Client, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: %s: marshal: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: %s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%w: %s: send: %w", ErrTelegram, method, err)
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env); err != nil {
		return &APIError{Method: method, Code: resp.StatusCode, Description: "undecodable response"}
	}
	if !env.OK || resp.StatusCode != http.StatusOK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{
			Method:      method,
			Code:        code,
			Description: env.Description,
			RetryAfter:  env.Parameters.RetryAfter,
		}
	}

	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("%w: %s: decode result: %w", ErrTelegram, method, err)
		}
	}
	return nil
}

func keyboardFor(rows [][]model.Button) *InlineKeyboard {
	if len(rows) == 0 {
		return nil
	}
	kb := &InlineKeyboard{InlineKeyboard: make([][]InlineButton, 0, len(rows))}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]InlineButton, len(row))
		for i, b := range row {
			out[i] = InlineButton{Text: b.Text, URL: b.URL}
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard, out)
	}
	return kb
}
