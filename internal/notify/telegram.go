package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts to one or more Telegram chats through the Bot API.
type TelegramSender struct {
	token   string
	chatIDs []string
	baseURL string
	client  *http.Client
}

// TelegramOption configures a TelegramSender.
type TelegramOption func(*TelegramSender)

// WithTelegramBaseURL points the sender at a different API host.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *TelegramSender) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithTelegramClient replaces the HTTP client.
func WithTelegramClient(c *http.Client) TelegramOption {
	return func(t *TelegramSender) { t.client = c }
}

// NewTelegramSender creates a sender for token delivering to every chat in
// chatIDs.
func NewTelegramSender(token string, chatIDs []string, opts ...TelegramOption) *TelegramSender {
	ids := make([]string, 0, len(chatIDs))
	for _, id := range chatIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	t := &TelegramSender{
		token:   token,
		chatIDs: ids,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send delivers to every chat. A failed chat does not stop delivery to the
// rest; chats are identified by position only.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	text := fmt.Sprintf("<b>%s</b>\n%s", escapeHTML(title), escapeHTML(message))

	var errs []error
	for i, chatID := range t.chatIDs {
		err := postJSON(ctx, t.client, endpoint, map[string]string{
			"chat_id":    chatID,
			"text":       text,
			"parse_mode": "HTML",
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram: chat #%d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Name returns "telegram".
func (t *TelegramSender) Name() string { return "telegram" }

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }
