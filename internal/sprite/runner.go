// Package sprite launches the external sprite-sheet generator as a
// long-running subprocess per video and tracks its progress. The generator
// writes a grid image of small frames plus a WebVTT cue file into the
// processed-assets directory; this package only owns the subprocess
// lifecycle, not the sprite format.
package sprite

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"video-library/internal/logging"
	"video-library/internal/metrics"
)

// Sentinel errors for rejectable precondition failures. Either means no
// process was spawned.
var (
	ErrVideoNotFound = fmt.Errorf("source video not found")
	ErrScriptMissing = fmt.Errorf("sprite generator script not found")
)

// progressRe matches the generator's frame-extraction progress lines,
// e.g. "Extracting frames: 12/100 (12.0%) | 3.2s elapsed".
var progressRe = regexp.MustCompile(`Extracting frames: (\d+)/(\d+)`)

// Runner invokes the sprite generator for individual videos.
type Runner struct {
	videosDir    string
	processedDir string
	script       string
	python       string
	registry     *Registry
}

// NewRunner creates a Runner. script is the path to the generator script,
// python the interpreter used to run it. The registry is shared with
// whoever serves progress polls.
func NewRunner(videosDir, processedDir, script, python string, registry *Registry) *Runner {
	if python == "" {
		python = "python3"
	}
	return &Runner{
		videosDir:    videosDir,
		processedDir: processedDir,
		script:       script,
		python:       python,
		registry:     registry,
	}
}

// Generate runs the sprite generator for fileName and waits for it to exit.
//
// Preconditions (source video exists, generator script exists) are checked
// before spawning; either failing returns a sentinel error. A non-zero exit
// is reported as a job failure but is not retried; the caller may
// re-trigger. Stdout and stderr are streamed line-by-line into the host log
// prefixed with the file name so concurrent jobs stay readable.
func (r *Runner) Generate(ctx context.Context, fileName string) error {
	videoPath := filepath.Join(r.videosDir, fileName)
	if _, err := os.Stat(videoPath); err != nil {
		metrics.SpriteJobsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %s", ErrVideoNotFound, fileName)
	}
	if _, err := os.Stat(r.script); err != nil {
		metrics.SpriteJobsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %s", ErrScriptMissing, r.script)
	}

	if err := os.MkdirAll(r.processedDir, 0o755); err != nil {
		metrics.SpriteJobsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to create processed dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.python, r.script,
		"--input", videoPath,
		"--outdir", r.processedDir,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		metrics.SpriteJobsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		metrics.SpriteJobsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	logging.Info("[sprite %s] starting generator", fileName)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		metrics.SpriteJobsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to start sprite generator: %w", err)
	}

	// Register progress only for a process that actually started, so a
	// failed spawn never leaves a phantom job behind.
	r.registry.Set(fileName, Progress{})

	metrics.SpriteJobsRunning.Inc()
	defer metrics.SpriteJobsRunning.Dec()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.streamOutput(fileName, stdout)
	}()
	go func() {
		defer wg.Done()
		r.streamOutput(fileName, stderr)
	}()
	wg.Wait()

	err = cmd.Wait()
	elapsed := time.Since(start)
	metrics.SpriteJobDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.SpriteJobsTotal.WithLabelValues("error").Inc()
		logging.Error("[sprite %s] generator failed after %v: %v", fileName, elapsed, err)
		return fmt.Errorf("sprite generator exited with error: %w", err)
	}

	if p, ok := r.registry.Get(fileName); ok {
		p.Done = true
		r.registry.Set(fileName, p)
	} else {
		r.registry.Set(fileName, Progress{Done: true})
	}

	metrics.SpriteJobsTotal.WithLabelValues("ok").Inc()
	logging.Info("[sprite %s] generator finished in %v", fileName, elapsed)
	return nil
}

// streamOutput copies one subprocess stream into the host log line by line,
// updating the progress registry as progress lines appear.
func (r *Runner) streamOutput(fileName string, reader interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(reader)
	// The generator redraws progress with carriage returns, so split on
	// both \r and \n.
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		logging.Info("[sprite %s] %s", fileName, line)

		if m := progressRe.FindStringSubmatch(line); m != nil {
			current, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			r.registry.Set(fileName, Progress{Current: current, Total: total})
		}
	}
	if err := scanner.Err(); err != nil {
		logging.Debug("[sprite %s] output stream error: %v", fileName, err)
	}
}

// scanCRLines is a bufio.SplitFunc that treats both \r and \n as line
// terminators.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
