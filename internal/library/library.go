// Package library assembles video metadata records. There is no durable
// index: every record is re-derived from the filesystem and the companion
// asset directories on each call, so the storage directory itself is the
// source of truth.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-library/internal/logging"
	"video-library/internal/mediatypes"
	"video-library/internal/metrics"
	"video-library/internal/probe"
	"video-library/internal/thumbnail"
	"video-library/internal/workers"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a requested video does not exist in the
// storage directory.
var ErrNotFound = errors.New("video not found")

// Probe retry policy applied during regeneration. A flaky probe gets a few
// chances with a fixed pause; after that the duration simply stays absent.
const (
	probeAttempts = 3
	probeDelay    = time.Second
)

// VideoRecord is the derived metadata for one video file. It is never
// stored; fileName is the primary key for this process run and the join key
// across video, thumbnail and sprite assets, so it is carried verbatim.
type VideoRecord struct {
	FileName     string    `json:"fileName"`
	Title        string    `json:"title"`
	Size         int64     `json:"size"`
	Duration     *int64    `json:"duration,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	VideoURL     string    `json:"videoUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	MimeType     string    `json:"mimeType"`
}

// Library derives VideoRecords from the storage directory.
type Library struct {
	videosDir    string
	processedDir string
	videoURLBase string
	prober       probe.Prober
	thumbs       *thumbnail.Cache
}

// New creates a Library. videoURLBase is the public path under which source
// videos are served (e.g. "/api/videos").
func New(videosDir, processedDir, videoURLBase string, prober probe.Prober, thumbs *thumbnail.Cache) *Library {
	return &Library{
		videosDir:    videosDir,
		processedDir: processedDir,
		videoURLBase: strings.TrimSuffix(videoURLBase, "/"),
		prober:       prober,
		thumbs:       thumbs,
	}
}

// GetAll lists every supported video in the storage directory and builds one
// record per file. Records are built concurrently with bounded parallelism;
// the result preserves enumeration order because results are collected
// positionally, not by completion order. A per-file failure omits that
// record; partial success is the contract.
func (l *Library) GetAll(ctx context.Context) ([]VideoRecord, error) {
	metrics.LibraryListings.Inc()
	start := time.Now()

	entries, err := scan(l.videosDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list video directory: %w", err)
	}

	records := make([]*VideoRecord, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers.ForIO(16))
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			rec, err := l.buildRecord(gctx, e, buildOpts{})
			if err != nil {
				logging.Warn("omitting %s from listing: %v", e.name, err)
				metrics.LibraryFilesSkipped.Inc()
				return nil
			}
			records[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]VideoRecord, 0, len(records))
	var totalSize int64
	for _, rec := range records {
		if rec != nil {
			result = append(result, *rec)
			totalSize += rec.Size
		}
	}

	logging.Debug("listed %d videos (%s) in %v",
		len(result), humanize.Bytes(uint64(totalSize)), time.Since(start))
	return result, nil
}

// Get builds the record for a single video. Returns ErrNotFound if the file
// does not exist or has an unsupported extension.
func (l *Library) Get(ctx context.Context, fileName string) (VideoRecord, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !mediatypes.IsVideo(ext) {
		return VideoRecord{}, fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}

	info, err := os.Stat(filepath.Join(l.videosDir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return VideoRecord{}, fmt.Errorf("%w: %s", ErrNotFound, fileName)
		}
		return VideoRecord{}, fmt.Errorf("failed to stat %s: %w", fileName, err)
	}

	return l.buildRecord(ctx, entry{name: fileName, info: info}, buildOpts{})
}

// Regenerate re-derives every record from scratch: the duration side-files
// are ignored and rewritten, probes get the full retry policy, and force is
// passed through to the thumbnail cache. Processing is strictly sequential
// per file to keep the retry pauses simple and the logs interleavable.
//
// The returned count of records still missing a duration after retries is a
// health signal for the caller, not an error.
func (l *Library) Regenerate(ctx context.Context, force bool) ([]VideoRecord, int, error) {
	entries, err := scan(l.videosDir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list video directory: %w", err)
	}

	records := make([]VideoRecord, 0, len(entries))
	missing := 0
	for _, e := range entries {
		rec, err := l.buildRecord(ctx, e, buildOpts{fresh: true, retry: true, force: force})
		if err != nil {
			logging.Warn("omitting %s from regeneration: %v", e.name, err)
			metrics.LibraryFilesSkipped.Inc()
			continue
		}
		if rec.Duration == nil {
			missing++
		}
		records = append(records, rec)
	}

	metrics.LibraryMissingDurations.Set(float64(missing))
	logging.Info("regenerated %d records, %d still missing a duration", len(records), missing)
	return records, missing, nil
}

// EnsureThumbnail resolves the video's duration and asks the thumbnail
// cache for a URL, generating the image if missing or if force is set.
// Returns ErrNotFound if the video does not exist; any other failure to
// produce a URL is a generation failure.
func (l *Library) EnsureThumbnail(ctx context.Context, fileName string, force bool) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !mediatypes.IsVideo(ext) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}
	if _, err := os.Stat(filepath.Join(l.videosDir, fileName)); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, fileName)
		}
		return "", fmt.Errorf("failed to stat %s: %w", fileName, err)
	}

	duration, hasDuration := l.duration(ctx, fileName, buildOpts{retry: true})
	thumbURL, ok := l.thumbs.Ensure(ctx, fileName, duration, hasDuration, force)
	if !ok {
		return "", fmt.Errorf("thumbnail generation failed for %s", fileName)
	}
	return thumbURL, nil
}

// buildOpts controls how a single record is derived.
type buildOpts struct {
	// fresh ignores the duration side-file and re-probes.
	fresh bool
	// retry applies the full probe retry policy instead of a single attempt.
	retry bool
	// force is passed to the thumbnail cache to delete and regenerate.
	force bool
}

func (l *Library) buildRecord(ctx context.Context, e entry, opts buildOpts) (VideoRecord, error) {
	ext := strings.ToLower(filepath.Ext(e.name))

	rec := VideoRecord{
		FileName:  e.name,
		Title:     Title(e.name),
		Size:      e.info.Size(),
		VideoURL:  l.videoURLBase + "/" + url.PathEscape(e.name),
		CreatedAt: e.info.ModTime(),
		MimeType:  mediatypes.VideoMime(ext),
	}

	duration, hasDuration := l.duration(ctx, e.name, opts)
	if hasDuration {
		rec.Duration = &duration
	}

	if thumbURL, ok := l.thumbs.Ensure(ctx, e.name, duration, hasDuration, opts.force); ok {
		rec.ThumbnailURL = thumbURL
	}

	return rec, nil
}

// duration resolves a video's duration: side-file first (unless fresh),
// then the probe adapter. A successful probe is written back to the
// side-file so later listings skip the probe entirely.
func (l *Library) duration(ctx context.Context, fileName string, opts buildOpts) (int64, bool) {
	if !opts.fresh {
		if secs, ok := l.readDurationSidecar(fileName); ok {
			return secs, true
		}
	}

	attempts := 1
	if opts.retry {
		attempts = probeAttempts
	}

	path := filepath.Join(l.videosDir, fileName)
	for attempt := 1; attempt <= attempts; attempt++ {
		if secs, ok := l.prober.Duration(ctx, path); ok {
			l.writeDurationSidecar(fileName, secs)
			return secs, true
		}
		if attempt < attempts {
			logging.Debug("probe yielded no duration for %s, retrying (%d/%d)", fileName, attempt, attempts)
			select {
			case <-time.After(probeDelay):
			case <-ctx.Done():
				return 0, false
			}
		}
	}

	// Give up silently: a missing duration degrades the record, it never
	// fails the listing.
	return 0, false
}

// durationSidecar is the side-file format stored under the processed-assets
// directory next to the sprite outputs.
type durationSidecar struct {
	Duration int64     `json:"duration"`
	ProbedAt time.Time `json:"probedAt"`
}

func (l *Library) sidecarPath(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return filepath.Join(l.processedDir, base+".duration.json")
}

func (l *Library) readDurationSidecar(fileName string) (int64, bool) {
	data, err := os.ReadFile(l.sidecarPath(fileName))
	if err != nil {
		return 0, false
	}
	var sc durationSidecar
	if err := json.Unmarshal(data, &sc); err != nil || sc.Duration <= 0 {
		return 0, false
	}
	return sc.Duration, true
}

func (l *Library) writeDurationSidecar(fileName string, seconds int64) {
	if err := os.MkdirAll(l.processedDir, 0o755); err != nil {
		logging.Debug("failed to create processed dir for side-file: %v", err)
		return
	}
	data, err := json.Marshal(durationSidecar{Duration: seconds, ProbedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := os.WriteFile(l.sidecarPath(fileName), data, 0o644); err != nil {
		logging.Debug("failed to write duration side-file for %s: %v", fileName, err)
	}
}

// Title derives a display title from a file name: extension stripped,
// underscores and hyphens replaced with spaces. Purely cosmetic; the file
// name itself remains the key everywhere.
func Title(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return base
}
