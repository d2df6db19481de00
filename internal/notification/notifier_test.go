package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture records the JSON bodies posted to it.
func capture(t *testing.T, status int) (*httptest.Server, *[]map[string]any, *[]string) {
	t.Helper()
	var bodies []map[string]any
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies, &paths
}

func TestDiscordNotifier_Content(t *testing.T) {
	srv, bodies, _ := capture(t, http.StatusNoContent)
	n := NewDiscordNotifier(srv.URL, time.Second)

	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "Pipeline", Message: "AAPL done"})
	require.NoError(t, err)
	require.Len(t, *bodies, 1)
	assert.Equal(t, "Pipeline\nAAPL done", (*bodies)[0]["content"])
}

func TestDiscordNotifier_Truncates(t *testing.T) {
	srv, bodies, _ := capture(t, http.StatusNoContent)
	n := NewDiscordNotifier(srv.URL, time.Second)

	require.NoError(t, n.Send(context.Background(), Alert{Message: strings.Repeat("x", 3000)}))
	content := (*bodies)[0]["content"].(string)
	assert.Equal(t, discordLimit, len([]rune(content)))
}

func TestDiscordNotifier_StatusError(t *testing.T) {
	srv, _, _ := capture(t, http.StatusTooManyRequests)
	n := NewDiscordNotifier(srv.URL, time.Second)

	err := n.Send(context.Background(), Alert{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTelegramNotifier_Payload(t *testing.T) {
	srv, bodies, paths := capture(t, http.StatusOK)
	n := NewTelegramNotifier("TOKEN", "42", time.Second)
	n.apiURL = srv.URL

	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertCritical, Title: "AAPL", Message: "+1.5%"}))
	assert.Equal(t, "/botTOKEN/sendMessage", (*paths)[0])
	body := (*bodies)[0]
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "MarkdownV2", body["parse_mode"])
	assert.Equal(t, "🚨 *AAPL*\n\n\\+1\\.5%", body["text"])
}

func TestWebhookNotifier_Payload(t *testing.T) {
	srv, bodies, _ := capture(t, http.StatusOK)
	n := NewWebhookNotifier(srv.URL, time.Second)

	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertWarning, Title: "t", Message: "m"}))
	body := (*bodies)[0]
	assert.Equal(t, "WARNING", body["level"])
	assert.Equal(t, "t", body["title"])
	assert.Equal(t, "m", body["message"])
	assert.NotEmpty(t, body["ts"])
}

type countingNotifier struct {
	sent int
	err  error
}

func (c *countingNotifier) Send(context.Context, Alert) error {
	c.sent++
	return c.err
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingNotifier{err: boom}, &countingNotifier{}

	err := Multi{a, b}.Send(context.Background(), Alert{Message: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.sent)
	assert.Equal(t, 1, b.sent)
}

func TestNew_SelectsChannels(t *testing.T) {
	assert.IsType(t, &LogNotifier{}, New(Config{}))

	n := New(Config{DiscordWebhookURL: "http://d", TelegramBotToken: "t", TelegramChatID: "c", WebhookURL: "http://w"})
	m, ok := n.(Multi)
	require.True(t, ok)
	require.Len(t, m, 3)
	assert.IsType(t, &DiscordNotifier{}, m[0])
	assert.IsType(t, &TelegramNotifier{}, m[1])
	assert.IsType(t, &WebhookNotifier{}, m[2])

	// A bot token without a chat is not a channel.
	assert.IsType(t, &LogNotifier{}, New(Config{TelegramBotToken: "t"}))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c\.d`, escapeMarkdown("a_b*c.d"))
	assert.Equal(t, "plain", escapeMarkdown("plain"))
}

func TestTelegramNotifier_MessageOnly(t *testing.T) {
	srv, bodies, _ := capture(t, http.StatusOK)
	n := NewTelegramNotifier("TOKEN", "42", time.Second)
	n.apiURL = srv.URL

	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertInfo, Message: "Pipeline completed: 2/5 successful"}))
	assert.Equal(t, "ℹ️ Pipeline completed: 2/5 successful", (*bodies)[0]["text"])
}
