package netutil

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// ShouldRetry reports whether a transport error is transient: timeouts,
// failed dials and reset connections. Cancellation by the caller never is.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
