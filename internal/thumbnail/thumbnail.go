// Package thumbnail maintains the per-video thumbnail cache: one generated
// still image per video, named by the video's base name, regenerated on
// demand via an external capture tool.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math/rand"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"video-library/internal/logging"
	"video-library/internal/metrics"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Fixed output resolution for captured thumbnails.
const (
	thumbWidth  = 320
	thumbHeight = 180
)

// Capturer extracts a single still frame from a video at a given timestamp
// and writes it to outPath. Implementations are expected to produce a JPEG
// at the fixed thumbnail resolution.
type Capturer interface {
	Capture(ctx context.Context, videoPath, timestamp, outPath string) error
}

// FFmpegCapturer captures frames by piping a single PNG frame out of ffmpeg
// and re-encoding it at thumbnail resolution.
type FFmpegCapturer struct {
	bin     string
	timeout time.Duration
}

// NewFFmpegCapturer returns an FFmpegCapturer using the given binary name or
// path. A timeout of 0 means no bound on the subprocess.
func NewFFmpegCapturer(bin string, timeout time.Duration) *FFmpegCapturer {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegCapturer{bin: bin, timeout: timeout}
}

// Capture extracts the frame at timestamp, fits it into the fixed thumbnail
// resolution and writes it as JPEG. The file is written to a temp path and
// renamed into place so a concurrent reader never sees a half-written image.
func (c *FFmpegCapturer) Capture(ctx context.Context, videoPath, timestamp, outPath string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.bin,
		"-ss", timestamp,
		"-i", videoPath,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return fmt.Errorf("ffmpeg produced no output for %s", videoPath)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}

	thumb := imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move thumbnail into place: %w", err)
	}

	return nil
}

// Cache decides whether a per-video thumbnail exists, generates it when
// missing or forced, and returns cache-busted reference URLs.
type Cache struct {
	videosDir string
	thumbDir  string
	urlPrefix string
	capturer  Capturer

	// Per-file-name locks so two concurrent requests for the same missing
	// thumbnail await one generation instead of racing the capture tool.
	// Entries are never removed; the map is bounded by distinct file names.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a thumbnail cache over the given directories. urlPrefix is the
// public path under which thumbnails are served (e.g. "/api/thumbnails").
func New(videosDir, thumbDir, urlPrefix string, capturer Capturer) *Cache {
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		logging.Warn("thumbnail cache: failed to create dir %s: %v", thumbDir, err)
	}
	return &Cache{
		videosDir: videosDir,
		thumbDir:  thumbDir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		capturer:  capturer,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (c *Cache) fileLock(fileName string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[fileName]
	if !ok {
		l = &sync.Mutex{}
		c.locks[fileName] = l
	}
	return l
}

// candidates returns the two on-disk names a thumbnail may have. The
// "_thumb" suffix is a historical naming variant still found on disk.
func (c *Cache) candidates(fileName string) []string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return []string{
		filepath.Join(c.thumbDir, base+".jpg"),
		filepath.Join(c.thumbDir, base+"_thumb.jpg"),
	}
}

// Ensure returns a cache-busted URL for fileName's thumbnail, generating it
// first if missing or if force is set.
//
// The returned bool is false when no thumbnail exists and none could be
// generated (no duration, or capture failure). That is a valid, displayable
// state for a video, not an error.
func (c *Cache) Ensure(ctx context.Context, fileName string, duration int64, hasDuration, force bool) (string, bool) {
	lock := c.fileLock(fileName)
	lock.Lock()
	defer lock.Unlock()

	candidates := c.candidates(fileName)

	if force {
		for _, path := range candidates {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logging.Warn("thumbnail cache: failed to remove %s: %v", path, err)
			}
		}
	} else {
		for _, path := range candidates {
			if info, err := os.Stat(path); err == nil {
				metrics.ThumbnailCacheHits.Inc()
				return c.stampedURL(path, info), true
			}
		}
	}

	if !hasDuration || duration <= 0 {
		return "", false
	}

	videoPath := filepath.Join(c.videosDir, fileName)
	outPath := candidates[0]
	timestamp := CaptureTime(duration)

	logging.Debug("thumbnail capture: %s at %s", fileName, timestamp)
	if err := c.capturer.Capture(ctx, videoPath, timestamp, outPath); err != nil {
		logging.Warn("thumbnail capture failed for %s: %v", fileName, err)
		metrics.ThumbnailsGenerated.WithLabelValues("error").Inc()
		return "", false
	}
	metrics.ThumbnailsGenerated.WithLabelValues("ok").Inc()

	info, err := os.Stat(outPath)
	if err != nil {
		logging.Warn("thumbnail cache: capture reported success but stat failed for %s: %v", outPath, err)
		return "", false
	}
	return c.stampedURL(outPath, info), true
}

// stampedURL builds the public URL for a thumbnail file, suffixed with a
// version token equal to the file's modification time in milliseconds. The
// token changes whenever the bytes change, which is what invalidates stale
// browser caches after regeneration.
func (c *Cache) stampedURL(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s/%s?v=%d", c.urlPrefix, url.PathEscape(filepath.Base(path)), info.ModTime().UnixMilli())
}

// CaptureTime picks the capture timestamp for a video of the given duration
// in seconds, formatted HH:MM:SS.
//
// Very short clips (<= 6s) always capture at one second in, past any black
// opening frame. Longer videos pick a uniformly random instant between
// min(10, duration/5) and max(lower, duration-5), avoiding intro and
// end-of-clip black frames while adding variety across regenerations.
func CaptureTime(duration int64) string {
	if duration <= 6 {
		return "00:00:01"
	}

	lower := duration / 5
	if lower > 10 {
		lower = 10
	}
	upper := duration - 5
	if upper < lower {
		upper = lower
	}

	t := lower + rand.Int63n(upper-lower+1)
	return fmt.Sprintf("%02d:%02d:%02d", t/3600, (t/60)%60, t%60)
}
