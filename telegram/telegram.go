// Package telegram is a minimal long-polling client for the Telegram Bot
// API: getUpdates in, sendMessage out. No webhook support.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiBase = "https://api.telegram.org"

// Handler processes one inbound message and returns the reply text. An error
// means the turn was lost; the client logs it and keeps polling.
type Handler func(ctx context.Context, chatID int64, text string) (string, error)

// Client long-polls one bot token and dispatches messages to a Handler.
type Client struct {
	token       string
	handle      string
	pollTimeout time.Duration
	httpClient  *http.Client
	logger      *log.Logger
	offset      int64
}

func NewClient(token, handle string, pollTimeout time.Duration) *Client {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Client{
		token:       token,
		handle:      strings.TrimPrefix(handle, "@"),
		pollTimeout: pollTimeout,
		// The HTTP timeout must outlive the long-poll hold time.
		httpClient: &http.Client{Timeout: pollTimeout + 10*time.Second},
		logger:     log.New(log.Writer(), "[TELEGRAM] ", log.LstdFlags),
	}
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      chat   `json:"chat"`
}

type chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Result      []update `json:"result"`
	Description string   `json:"description"`
}

// Run polls until the context is canceled. Messages are dispatched
// sequentially in update order; per-chat serialization is the handler's
// concern.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	c.logger.Printf("polling as @%s", c.handle)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := c.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Printf("getUpdates failed, backing off: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			c.dispatch(ctx, u.Message, handler)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, msg *message, handler Handler) {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	text, ok := c.filterMention(msg)
	if !ok {
		return
	}

	reply, err := handler(ctx, msg.Chat.ID, text)
	if err != nil {
		c.logger.Printf("chat %d: handler failed: %v", msg.Chat.ID, err)
		return
	}
	if strings.TrimSpace(reply) == "" {
		return
	}
	if err := c.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		c.logger.Printf("chat %d: send failed: %v", msg.Chat.ID, err)
	}
}

// filterMention applies the group-chat rule: in groups only messages that
// start with the bot's @handle are processed, with the mention stripped.
// Private chats pass through unchanged.
func (c *Client) filterMention(msg *message) (string, bool) {
	text := strings.TrimSpace(msg.Text)
	if msg.Chat.Type == "private" || c.handle == "" {
		return text, true
	}
	mention := "@" + c.handle
	if !strings.HasPrefix(text, mention) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(text, mention)), true
}

func (c *Client) getUpdates(ctx context.Context) ([]update, error) {
	q := url.Values{}
	q.Set("timeout", fmt.Sprintf("%d", int(c.pollTimeout.Seconds())))
	q.Set("offset", fmt.Sprintf("%d", c.offset))
	q.Set("allowed_updates", `["message"]`)

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", apiBase, c.token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding getUpdates response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("getUpdates rejected: %s", parsed.Description)
	}
	return parsed.Result, nil
}

// SendMessage delivers one reply with link previews disabled.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decoding sendMessage response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("sendMessage rejected: %s", parsed.Description)
	}
	return nil
}
