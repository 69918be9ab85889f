// Package memory configures the Go memory limit from container metadata and
// watches heap pressure while ffmpeg and sprite subprocesses run alongside
// the heap.
package memory

import (
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"video-library/internal/logging"
	"video-library/internal/metrics"

	"github.com/dustin/go-humanize"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The remainder is headroom for subprocess pipes, image decode buffers
// and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// early in main, before significant allocations.
//
// GOMEMLIMIT takes precedence when set. Otherwise MEMORY_LIMIT (bytes, e.g.
// from the Kubernetes Downward API) scaled by MEMORY_RATIO is applied.
func ConfigureFromEnv() {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return
	}

	limitStr := os.Getenv("MEMORY_LIMIT")
	if limitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT left unconfigured")
		return
	}

	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Ignoring unparseable MEMORY_LIMIT %q", limitStr)
		return
	}

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		if parsed, err := strconv.ParseFloat(ratioStr, 64); err == nil && parsed > 0 && parsed <= 1.0 {
			ratio = parsed
		} else {
			logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using default %.2f", ratioStr, DefaultMemoryRatio)
		}
	}

	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)
	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		humanize.IBytes(uint64(goMemLimit)), ratio*100, humanize.IBytes(uint64(limit)))
}

// Monitor samples heap usage against the configured limit, publishes the
// ratio as a metric and forces a collection when usage crosses the critical
// watermark.
type Monitor struct {
	limit    int64
	critical float64
	interval time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMonitor creates a monitor bound to the effective GOMEMLIMIT. When no
// limit is configured the monitor is inert.
func NewMonitor(critical float64, interval time.Duration) *Monitor {
	var limit int64
	if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
		limit = l
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, monitoring disabled")
	}
	return &Monitor{
		limit:    limit,
		critical: critical,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins sampling in the background. No-op without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop halts sampling. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	usage := float64(stats.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	if usage >= m.critical {
		logging.Warn("Memory critical: %.1f%% of %s limit, forcing GC",
			usage*100, humanize.IBytes(uint64(m.limit)))
		metrics.MemoryForcedGC.Inc()
		runtime.GC()
	}
}
