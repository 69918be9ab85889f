// Package filesystem provides stat/open wrappers with retry logic for NFS
// stale file handle errors. Storage roots are commonly NFS mounts; a stale
// handle is transient and a short retry usually resolves it.
package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"video-library/internal/logging"
	"video-library/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isStaleError checks if an error is an NFS stale file handle error (ESTALE).
func isStaleError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// Stat performs os.Stat with retry logic for NFS stale file handle errors.
// Non-ESTALE errors are returned immediately; callers decide whether a
// failed stat skips the entry or fails the request.
func Stat(path string, config RetryConfig) (os.FileInfo, error) {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		info, err := os.Stat(path)
		if err == nil {
			if attempt > 0 {
				logging.Info("stat succeeded on retry %d for %s", attempt, path)
				metrics.FilesystemRetrySuccess.WithLabelValues("stat").Inc()
			}
			return info, nil
		}

		lastErr = err
		if !isStaleError(err) {
			return nil, err
		}
		metrics.FilesystemStaleErrors.WithLabelValues("stat").Inc()

		if attempt < config.MaxRetries {
			logging.Debug("stat stale file handle for %s, retrying in %v (attempt %d/%d)",
				path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("stat failed after %d retries for %s: %v", config.MaxRetries, path, lastErr)
	metrics.FilesystemRetryFailures.WithLabelValues("stat").Inc()
	return nil, lastErr
}

// Open performs os.Open with retry logic for NFS stale file handle errors.
func Open(path string, config RetryConfig) (*os.File, error) {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		file, err := os.Open(path)
		if err == nil {
			if attempt > 0 {
				logging.Info("open succeeded on retry %d for %s", attempt, path)
				metrics.FilesystemRetrySuccess.WithLabelValues("open").Inc()
			}
			return file, nil
		}

		lastErr = err
		if !isStaleError(err) {
			return nil, err
		}
		metrics.FilesystemStaleErrors.WithLabelValues("open").Inc()

		if attempt < config.MaxRetries {
			logging.Debug("open stale file handle for %s, retrying in %v (attempt %d/%d)",
				path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("open failed after %d retries for %s: %v", config.MaxRetries, path, lastErr)
	metrics.FilesystemRetryFailures.WithLabelValues("open").Inc()
	return nil, lastErr
}
