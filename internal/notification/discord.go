package notification

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// discordLimit is the maximum message length Discord accepts.
const discordLimit = 2000

// DiscordNotifier posts alerts to a Discord channel webhook.
type DiscordNotifier struct {
	url    string
	client *resty.Client
}

func NewDiscordNotifier(webhookURL string, timeout time.Duration) *DiscordNotifier {
	return &DiscordNotifier{url: webhookURL, client: newClient(timeout)}
}

func (d *DiscordNotifier) Send(ctx context.Context, alert Alert) error {
	content := alert.Text()
	if r := []rune(content); len(r) > discordLimit {
		content = string(r[:discordLimit-1]) + "…"
	}
	if err := postJSON(ctx, d.client, "discord", d.url, map[string]string{"content": content}); err != nil {
		return err
	}
	log.Debug().Str("title", alert.Title).Msg("discord alert sent")
	return nil
}
