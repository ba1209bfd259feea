package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/projectbot/core/telegram/netutil"
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Long polling holds requests open, so the client timeout must exceed the poll timeout.
func BuildHTTPClient(longPollSeconds int) *http.Client {
	opts := netutil.ClientOptions{}
	if longPollSeconds > 0 {
		opts.ResponseTimeout = time.Duration(longPollSeconds+5) * time.Second
		opts.ClientTimeout = time.Duration(longPollSeconds+20) * time.Second
	}
	return netutil.BuildClient(opts)
}
