// Package sender runs outbound Telegram calls on a small worker pool so
// handlers return before the network round trip finishes.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// MaxFloodWait caps how long a job honours a Telegram retry_after.
	MaxFloodWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	if o.MaxFloodWait <= 0 {
		o.MaxFloodWait = 5 * time.Second
	}
	return o
}

type job struct {
	ctx    context.Context
	action string
	method string
	run    func() error
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retried uint64
	Queued  int
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs of one chat land on the same worker so replies keep their order.
type Dispatcher struct {
	opts   Options
	shards []chan job
	next   atomic.Uint64
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	retried atomic.Uint64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:   opts,
		shards: make([]chan job, opts.Workers),
		stop:   make(chan struct{}),
	}
	perShard := max(1, (opts.QueueSize+opts.Workers-1)/opts.Workers)
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, perShard)
		go d.worker(d.shards[i])
	}
	return d
}

func (d *Dispatcher) shard(ctx context.Context) chan job {
	n := uint64(len(d.shards))
	if ctx != nil {
		if chat := logger.ChatIDFrom(ctx); chat != 0 {
			return d.shards[uint64(chat)%n]
		}
	}
	return d.shards[d.next.Add(1)%n]
}

// Enqueue schedules run. run must be safe to call again when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, method string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case d.shard(ctx) <- job{ctx: ctx, action: action, method: method, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed after all attempts.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Retried: d.retried.Load(),
		Queued:  d.queued(),
	}
}

func (d *Dispatcher) queued() int {
	n := 0
	for _, ch := range d.shards {
		n += len(ch)
	}
	return n
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		for _, ch := range d.shards {
			close(ch)
		}
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.process(j)
	}
}

// retryDelay returns how long to wait before the next attempt, or false when
// err is not worth retrying.
func (d *Dispatcher) retryDelay(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		wait := time.Duration(flood.RetryAfter) * time.Second
		if wait > d.opts.MaxFloodWait {
			return 0, false
		}
		return wait, true
	}
	if !netutil.ShouldRetry(err) {
		return 0, false
	}
	return d.opts.RetryBackoff * time.Duration(attempt), true
}

func (d *Dispatcher) process(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// The update that queued the job may finish first; keep its values only.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	attempt := 1
	for ; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			d.sent.Add(1)
			logger.Debug(ctx, "tg.sender", "send", j.attrs("ok", attempt, start, nil)...)
			return
		}
		if attempt == attempts {
			break
		}
		delay, ok := d.retryDelay(err, attempt)
		if !ok {
			break
		}
		d.retried.Add(1)
		logger.Debug(ctx, "tg.sender", "send", j.attrs("retry", attempt, start, err)...)

		timer := time.NewTimer(delay)
		select {
		case <-runCtx.Done():
			timer.Stop()
			err = errors.Join(err, runCtx.Err())
		case <-timer.C:
			continue
		}
		break
	}

	d.failed.Add(1)
	logger.Error(ctx, "tg.sender", "send", j.attrs("fail", attempt, start, err)...)
}

func (j job) attrs(status string, attempt int, start time.Time, err error) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("op", j.action),
		slog.Int("attempts", attempt),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if j.method != "" {
		attrs = append(attrs, slog.String("method", j.method))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", redact(err)),
			slog.String("err_code", classify(err)),
		)
	}
	return attrs
}

// redact hides bot tokens that net/http embeds in request URLs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func classify(err error) string {
	var (
		flood  tele.FloodError
		apiErr *tele.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
		netErr net.Error
		tlsErr tls.AlertError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr):
		if apiErr.Code >= http.StatusInternalServerError {
			return "http_5xx"
		}
		return "http_4xx"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	}
	return "unknown"
}
