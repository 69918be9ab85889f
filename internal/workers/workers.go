// Package workers determines worker pool sizes that respect container CPU
// limits. runtime.NumCPU reports the host's CPUs even under cgroup limits,
// while GOMAXPROCS is set from the container limit (Go 1.19+), so pool
// sizing is derived from GOMAXPROCS.
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the worker count for a task type.
//
// The multiplier adjusts for task characteristics: 1.0 for CPU-bound work,
// 2.0 for I/O-bound work. The limit caps the result; use 0 for no limit.
// The LIST_WORKERS environment variable overrides the computed value.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("LIST_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns the worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns the worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
