package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NotifierConfig holds Bot API configuration
type NotifierConfig struct {
	BotToken  string
	ChannelID string // optional channel for published listings
	Timeout   time.Duration
}

// Notifier sends user-facing messages through the Bot API.
// Sends are best-effort: callers log failures and carry on.
type Notifier struct {
	httpClient *http.Client
	config     NotifierConfig
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// NewNotifier creates a Bot API notifier
func NewNotifier(cfg NotifierConfig) *Notifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Enabled reports whether a bot token is configured
func (n *Notifier) Enabled() bool {
	return n != nil && strings.TrimSpace(n.config.BotToken) != ""
}

// SendMessage delivers a text message to a chat
func (n *Notifier) SendMessage(ctx context.Context, chatID, text string) error {
	if !n.Enabled() {
		return fmt.Errorf("telegram notifier not configured")
	}
	if strings.TrimSpace(chatID) == "" || strings.TrimSpace(text) == "" {
		return fmt.Errorf("validation error: chat_id and text must be non-empty")
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("failed to encode telegram request: %w", err)
	}

	url := "https://api.telegram.org/bot" + n.config.BotToken + "/sendMessage"

	timeout := n.config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("telegram api call failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram api call failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

// PublishToChannel posts a listing announcement to the configured channel
func (n *Notifier) PublishToChannel(ctx context.Context, text string) error {
	if strings.TrimSpace(n.config.ChannelID) == "" {
		return fmt.Errorf("telegram channel not configured")
	}
	return n.SendMessage(ctx, n.config.ChannelID, text)
}
