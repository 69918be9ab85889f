// Package streaming provides timeout-protected writing of large response
// bodies. A client that stops reading mid-video would otherwise pin a
// handler goroutine forever; the timeout writer turns that into an error.
package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"video-library/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the configured
	// timeout, typically because the client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream
	// completed, detected via request context cancellation.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates the stream was canceled programmatically.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config configures timeout writer behavior.
type Config struct {
	// WriteTimeout is the maximum time to wait for a single write.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes.
	IdleTimeout time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received).
	ChunkSize int
}

// DefaultConfig returns defaults suitable for serving video byte ranges.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter with timeout protection.
type TimeoutWriter struct {
	w         http.ResponseWriter
	ctx       context.Context
	cancel    context.CancelFunc
	config    Config
	lastWrite time.Time
	written   int64
	mu        sync.Mutex
	closed    bool
	flusher   http.Flusher
}

// NewTimeoutWriter creates a new timeout-protected writer.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)

	tw := &TimeoutWriter{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		lastWrite: time.Now(),
	}

	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	go tw.idleChecker()

	return tw
}

// Write implements io.Writer with timeout protection.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return 0, ErrStreamCanceled
	}
	tw.mu.Unlock()

	select {
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	default:
	}

	if tw.config.ChunkSize > 0 && len(p) > tw.config.ChunkSize {
		return tw.writeChunked(p)
	}
	return tw.writeWithTimeout(p)
}

func (tw *TimeoutWriter) writeChunked(p []byte) (int, error) {
	total := 0

	for len(p) > 0 {
		select {
		case <-tw.ctx.Done():
			return total, tw.contextError()
		default:
		}

		chunk := tw.config.ChunkSize
		if len(p) < chunk {
			chunk = len(p)
		}

		n, err := tw.writeWithTimeout(p[:chunk])
		total += n
		if err != nil {
			return total, err
		}

		p = p[chunk:]

		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}

	return total, nil
}

func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	select {
	case result := <-resultCh:
		if result.err == nil {
			tw.mu.Lock()
			tw.lastWrite = time.Now()
			tw.written += int64(result.n)
			tw.mu.Unlock()
		}
		return result.n, result.err

	case <-time.After(tw.config.WriteTimeout):
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("stream idle timeout exceeded: %v", idle)
				tw.cancel()
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) contextError() error {
	if tw.ctx.Err() == context.Canceled {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel()
	return nil
}

// Written returns the number of bytes written so far.
func (tw *TimeoutWriter) Written() int64 {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written
}

// Copy streams from a reader to an HTTP response with timeout protection.
// Unlike chunked transcoding output, callers serving byte ranges set an
// exact Content-Length, so no transfer-encoding headers are touched here.
// Returns the number of bytes written.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("failed to close timeout writer: %v", err)
		}
	}()

	_, err := io.Copy(tw, r)
	return tw.Written(), err
}
