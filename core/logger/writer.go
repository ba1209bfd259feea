package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// levelAll admits every record.
const levelAll slog.Level = -1 << 20

// sink is one destination; lines below minLevel are not written to it.
type sink struct {
	w        io.Writer
	minLevel slog.Level
}

type entry struct {
	level slog.Level
	data  []byte
}

// asyncWriter moves formatting output off the caller goroutine and fans it
// out to every sink whose level admits the line.
type asyncWriter struct {
	queue    chan entry
	flushReq chan chan error
	done     chan struct{}

	closeMu sync.RWMutex
	closed  bool

	mu      sync.Mutex
	sinks   []*bufio.Writer
	levels  []slog.Level
	lastErr error
}

func newAsyncWriter(sinks []sink, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	aw := &asyncWriter{
		queue:    make(chan entry, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}
	for _, s := range sinks {
		if s.w == nil {
			continue
		}
		aw.sinks = append(aw.sinks, bufio.NewWriterSize(s.w, bufSize))
		aw.levels = append(aw.levels, s.minLevel)
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				_ = w.flushAll()
				return
			}
			w.setErr(w.writeAll(e))
		case ack := <-w.flushReq:
			w.drain()
			ack <- w.flushAll()
		}
	}
}

// drain writes whatever is already queued so Flush covers earlier Writes.
func (w *asyncWriter) drain() {
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				return
			}
			w.setErr(w.writeAll(e))
		default:
			return
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full rather than
// dropping lines.
func (w *asyncWriter) Write(level slog.Level, p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- entry{level: level, data: append([]byte(nil), p...)}
	return nil
}

// Flush waits until every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return errors.Join(<-ack, w.err())
	case <-w.done:
		return w.err()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.closeMu.Unlock()
	<-w.done
	return w.err()
}

func (w *asyncWriter) writeAll(e entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for i, s := range w.sinks {
		if e.level < w.levels[i] {
			continue
		}
		if _, err := s.Write(e.data); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastErr == nil {
		w.lastErr = err
	}
}
