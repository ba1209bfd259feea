package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongPoll(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "longpoll"})
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, defaultLongPollTimeout, lp.Timeout)

	p = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 25})
	assert.Equal(t, 25*time.Second, p.(*tele.LongPoller).Timeout)
}

func TestBuildPollerWebhook(t *testing.T) {
	p := BuildPoller(PollerOptions{
		RunMode: "Webhook",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook", SecretToken: "s3"},
	})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "s3", wh.SecretToken)
	assert.Equal(t, "https://bot.example.com/hook", wh.Endpoint.PublicURL)
}

func TestBuildHTTPClientOutlivesLongPoll(t *testing.T) {
	c := BuildHTTPClient(30)
	assert.Greater(t, c.Timeout, 30*time.Second)
}
