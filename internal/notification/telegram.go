package notification

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const telegramAPI = "https://api.telegram.org"

var levelIcons = map[AlertLevel]string{
	AlertInfo:     "ℹ️",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

// MarkdownV2 reserves these characters outside entities.
var markdownEscaper = strings.NewReplacer(
	`_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
)

// TelegramNotifier posts alerts to one chat through the Bot API.
type TelegramNotifier struct {
	token  string
	chatID string
	apiURL string
	client *resty.Client
}

func NewTelegramNotifier(token, chatID string, timeout time.Duration) *TelegramNotifier {
	return &TelegramNotifier{token: token, chatID: chatID, apiURL: telegramAPI, client: newClient(timeout)}
}

// Send renders the title in bold above the message. An alert without a
// title is sent as the bare message.
func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	var b strings.Builder
	if icon, ok := levelIcons[alert.Level]; ok {
		b.WriteString(icon + " ")
	}
	if alert.Title != "" {
		b.WriteString("*" + escapeMarkdown(alert.Title) + "*")
		if alert.Message != "" {
			b.WriteString("\n\n")
		}
	}
	b.WriteString(escapeMarkdown(alert.Message))

	err := postJSON(ctx, t.client, "telegram", t.apiURL+"/bot"+t.token+"/sendMessage", map[string]any{
		"chat_id":    t.chatID,
		"text":       b.String(),
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return err
	}
	log.Debug().Str("chat_id", t.chatID).Msg("telegram alert sent")
	return nil
}

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
