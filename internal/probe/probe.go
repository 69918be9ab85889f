// Package probe extracts stream duration from video files via ffprobe.
//
// The contract is deliberately two-outcome: a probe either yields a whole
// number of seconds or it yields nothing. Tool failures, unparseable output
// and zero/negative durations all collapse into "no duration"; callers may
// retry but never see an error.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os/exec"
	"strconv"
	"time"

	"video-library/internal/logging"
	"video-library/internal/metrics"
)

// Prober is the narrow interface consumed by the metadata assembler.
// The second return value reports whether a usable duration was found.
type Prober interface {
	Duration(ctx context.Context, path string) (int64, bool)
}

// FFProbe probes files by invoking the ffprobe binary.
type FFProbe struct {
	bin     string
	timeout time.Duration
}

// NewFFProbe returns an FFProbe using the given binary name or path.
// A timeout of 0 means no bound on the subprocess.
func NewFFProbe(bin string, timeout time.Duration) *FFProbe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFProbe{bin: bin, timeout: timeout}
}

// ffprobeOutput matches the subset of ffprobe's JSON output we read.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Duration probes path and returns its duration in whole seconds.
//
// The primary source is format.duration; if that yields no usable value the
// per-stream list is scanned for a video stream with a duration. A value is
// usable only if it parses to a positive finite number; it is floored to
// whole seconds.
func (p *FFProbe) Duration(ctx context.Context, path string) (int64, bool) {
	metrics.ProbeAttempts.Inc()
	start := time.Now()
	defer func() {
		metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.bin,
		"-hide_banner",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Debug("ffprobe failed for %s: %v (stderr: %s)", path, err, stderr.String())
		metrics.ProbeNoDuration.Inc()
		return 0, false
	}

	seconds, ok := ParseDuration(stdout.Bytes())
	if !ok {
		logging.Debug("ffprobe yielded no usable duration for %s", path)
		metrics.ProbeNoDuration.Inc()
	}
	return seconds, ok
}

// ParseDuration extracts a whole-second duration from raw ffprobe JSON.
// Exposed separately so the parse logic is testable without the binary.
func ParseDuration(raw []byte) (int64, bool) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, false
	}

	if secs, ok := usableSeconds(out.Format.Duration); ok {
		return secs, true
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		if secs, ok := usableSeconds(s.Duration); ok {
			return secs, true
		}
	}

	return 0, false
}

// usableSeconds parses an ffprobe duration string. The value is floored to
// whole seconds; anything below one second is unusable.
func usableSeconds(v string) (int64, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	secs := int64(math.Floor(f))
	if secs <= 0 {
		return 0, false
	}
	return secs, true
}
