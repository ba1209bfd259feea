package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/projectbot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen      string
	Port        int
	URL         string
	SecretToken string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a webhook listener for webhook mode and a long poller
// otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:      net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
			SecretToken: opts.Webhook.SecretToken,
			Endpoint:    &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}

	timeout := defaultLongPollTimeout
	if opts.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}
