package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"PostPilot/internal/approval"
)

const defaultAPIBase = "https://api.telegram.org"

// Transport speaks the Telegram Bot API: outbound prompts with inline
// keyboards, inbound updates via long polling. It implements
// approval.Transport for a single operator chat.
type Transport struct {
	apiBase     string
	botToken    string
	chatID      string
	pollTimeout time.Duration
	client      *http.Client
	logger      *slog.Logger

	events chan approval.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	offset int64
}

var _ approval.Transport = (*Transport)(nil)

// New validates credentials and builds the transport. A missing token or
// chat id is fatal to the run: without the channel there is no approval
// workflow at all.
func New(botToken, chatID string, pollTimeout time.Duration, logger *slog.Logger) (*Transport, error) {
	return newWithBase(defaultAPIBase, botToken, chatID, pollTimeout, logger)
}

func newWithBase(apiBase, botToken, chatID string, pollTimeout time.Duration, logger *slog.Logger) (*Transport, error) {
	if botToken == "" || chatID == "" {
		return nil, fmt.Errorf("telegram transport misconfigured: token and chat id are required")
	}
	if pollTimeout <= 0 {
		pollTimeout = 25 * time.Second
	}
	return &Transport{
		apiBase:     apiBase,
		botToken:    botToken,
		chatID:      chatID,
		pollTimeout: pollTimeout,
		client:      &http.Client{Timeout: pollTimeout + 10*time.Second},
		logger:      logger,
		events:      make(chan approval.Event, 16),
	}, nil
}

// Start launches the long-poll loop. Events() closes after Close.
func (t *Transport) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(t.events)
		t.pollLoop(ctx)
	}()
}

// Events returns the inbound event stream.
func (t *Transport) Events() <-chan approval.Event {
	return t.events
}

// SendPrompt posts a Markdown message with one inline button per row.
func (t *Transport) SendPrompt(ctx context.Context, text string, buttons []approval.Button) error {
	keyboard := make([][]map[string]string, 0, len(buttons))
	for _, b := range buttons {
		keyboard = append(keyboard, []map[string]string{
			{"text": b.Label, "callback_data": b.Payload},
		})
	}

	return t.call(ctx, "sendMessage", map[string]any{
		"chat_id":      t.chatID,
		"text":         text,
		"parse_mode":   "Markdown",
		"reply_markup": map[string]any{"inline_keyboard": keyboard},
	}, nil)
}

// SendNotice posts a plain message without response affordances.
func (t *Transport) SendNotice(ctx context.Context, text string) error {
	return t.call(ctx, "sendMessage", map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}, nil)
}

// AckCallback answers a button press so the client stops its spinner.
func (t *Transport) AckCallback(ctx context.Context, callbackID, text string) error {
	return t.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
	}, nil)
}

// Close stops the poll loop and waits for it to drain.
func (t *Transport) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	return nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

func (t *Transport) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("getUpdates failed, backing off", "error", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= t.offset {
				t.offset = upd.UpdateID + 1
			}
			ev, ok := t.toEvent(upd)
			if !ok {
				continue
			}
			select {
			case t.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *Transport) toEvent(upd update) (approval.Event, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.Message != nil && !t.sameChat(cq.Message.Chat.ID) {
			return approval.Event{}, false
		}
		sender := ""
		if cq.From != nil {
			sender = strconv.FormatInt(cq.From.ID, 10)
		}
		return approval.Event{Payload: cq.Data, CallbackID: cq.ID, Sender: sender}, true
	}

	if msg := upd.Message; msg != nil && msg.Text != "" {
		if !t.sameChat(msg.Chat.ID) {
			return approval.Event{}, false
		}
		sender := ""
		if msg.From != nil {
			sender = strconv.FormatInt(msg.From.ID, 10)
		}
		return approval.Event{Text: msg.Text, Sender: sender}, true
	}

	return approval.Event{}, false
}

func (t *Transport) sameChat(chatID int64) bool {
	return strconv.FormatInt(chatID, 10) == t.chatID
}

func (t *Transport) getUpdates(ctx context.Context) ([]update, error) {
	var result []update
	err := t.call(ctx, "getUpdates", map[string]any{
		"offset":          t.offset,
		"timeout":         int(t.pollTimeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *Transport) call(ctx context.Context, method string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram %s: %s: %s", method, resp.Status, strings.TrimSpace(string(raw)))
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s rejected: %s", method, envelope.Description)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
