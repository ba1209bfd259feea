package netutil

import (
	"errors"
	"net"
	"net/http"
	"time"
)

// ClientOptions tunes BuildClient. Zero values fall back to the defaults below.
type ClientOptions struct {
	DialTimeout     time.Duration
	TLSHandshake    time.Duration
	IdleConnTimeout time.Duration
	ResponseTimeout time.Duration
	ClientTimeout   time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
}

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second
)

func (o ClientOptions) withDefaults() ClientOptions {
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.TLSHandshake <= 0 {
		o.TLSHandshake = defaultTLSHandshake
	}
	if o.IdleConnTimeout <= 0 {
		o.IdleConnTimeout = defaultIdleConnTimeout
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = defaultResponseTimeout
	}
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = defaultClientTimeout
	}
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	} else if o.RetryAttempts == 0 {
		o.RetryAttempts = defaultRetryAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	return o
}

// BuildClient returns an HTTP client with bounded timeouts that retries
// transient dial and timeout failures.
func BuildClient(opts ClientOptions) *http.Client {
	opts = opts.withDefaults()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.DialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       opts.IdleConnTimeout,
		TLSHandshakeTimeout:   opts.TLSHandshake,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: opts.ClientTimeout,
		Transport: &RetryTransport{
			Base:       transport,
			MaxRetries: opts.RetryAttempts,
			Backoff:    opts.RetryBackoff,
		},
	}
}

// RetryTransport retries requests whose failure ShouldRetry accepts.
// Requests with a body are retried only when GetBody is set. Non-idempotent
// methods are retried only when the connection was never established, so a
// POST the server may already have processed is never sent twice.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	Backoff    time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil && req.Body != http.NoBody {
				return nil, lastErr
			}
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !replayable(req.Method, err) || attempt == attempts {
			break
		}

		delay := t.Backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

func replayable(method string, err error) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return ShouldRetry(err)
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial" && ShouldRetry(err)
}
