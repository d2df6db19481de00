// Package notification delivers pipeline and monitor alerts to external
// channels (Discord, Telegram, generic webhooks) or the log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Text renders the alert as one plain message.
func (a Alert) Text() string {
	if a.Title == "" {
		return a.Message
	}
	if a.Message == "" {
		return a.Title
	}
	return a.Title + "\n" + a.Message
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. It is the fallback when
// no channel is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Info().
		Str("level", string(alert.Level)).
		Str("title", alert.Title).
		Str("message", alert.Message).
		Msg("notify")
	return nil
}

// Multi fans an alert out to every notifier. Delivery continues past
// failures; the joined errors are returned.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config selects the channels. Empty values disable a channel.
type Config struct {
	DiscordWebhookURL string        `yaml:"discord_webhook_url"`
	TelegramBotToken  string        `yaml:"telegram_bot_token"`
	TelegramChatID    string        `yaml:"telegram_chat_id"`
	WebhookURL        string        `yaml:"webhook_url"`
	Timeout           time.Duration `yaml:"timeout" default:"10s"`
}

// New builds the notifier for cfg: a Multi over the configured channels,
// or a LogNotifier when none is configured.
func New(cfg Config) Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var m Multi
	if cfg.DiscordWebhookURL != "" {
		m = append(m, NewDiscordNotifier(cfg.DiscordWebhookURL, timeout))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		m = append(m, NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, timeout))
	}
	if cfg.WebhookURL != "" {
		m = append(m, NewWebhookNotifier(cfg.WebhookURL, timeout))
	}
	if len(m) == 0 {
		return NewLogNotifier()
	}
	return m
}

func newClient(timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return client
}

// postJSON sends payload and expects a 2xx answer.
func postJSON(ctx context.Context, client *resty.Client, channel, url string, payload any) error {
	resp, err := client.R().SetContext(ctx).SetBody(payload).Post(url)
	if err != nil {
		return fmt.Errorf("%s: send: %w", channel, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%s: unexpected status %d", channel, resp.StatusCode())
	}
	return nil
}
