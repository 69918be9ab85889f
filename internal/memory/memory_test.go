package memory

import (
	"math"
	"runtime/debug"
	"testing"
	"time"
)

func TestConfigureFromEnv(t *testing.T) {
	orig := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(orig)

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824") // 1 GiB container limit
	t.Setenv("MEMORY_RATIO", "")

	ConfigureFromEnv()

	limit := debug.SetMemoryLimit(-1)
	base := float64(1073741824)
	want := int64(base * DefaultMemoryRatio)
	if limit != want {
		t.Errorf("GOMEMLIMIT = %d, want %d", limit, want)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	orig := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(orig)

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	ConfigureFromEnv()

	if limit := debug.SetMemoryLimit(-1); limit != 500000 {
		t.Errorf("GOMEMLIMIT = %d, want 500000", limit)
	}
}

func TestConfigureFromEnvIgnoresGarbage(t *testing.T) {
	orig := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(orig)

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "a-lot")

	ConfigureFromEnv()

	if limit := debug.SetMemoryLimit(-1); limit != orig {
		t.Errorf("GOMEMLIMIT = %d, want untouched %d", limit, orig)
	}
}

func TestMonitorInertWithoutLimit(t *testing.T) {
	orig := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(orig)
	debug.SetMemoryLimit(math.MaxInt64)

	m := NewMonitor(0.85, time.Millisecond)
	if m.limit != 0 {
		t.Errorf("limit = %d, want 0 when no GOMEMLIMIT configured", m.limit)
	}

	// Start and Stop are no-op safe in this state.
	m.Start()
	m.Stop()
	m.Stop()
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	orig := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(orig)
	debug.SetMemoryLimit(4 << 30)

	m := NewMonitor(0.85, time.Millisecond)
	m.Start()
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}
