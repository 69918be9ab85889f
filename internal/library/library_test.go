package library

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"video-library/internal/thumbnail"
)

// stubProber returns scripted results per call.
type stubProber struct {
	mu      sync.Mutex
	results []probeResult
	calls   int
}

type probeResult struct {
	secs int64
	ok   bool
}

func (s *stubProber) Duration(_ context.Context, _ string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return 0, false
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r.secs, r.ok
}

func (s *stubProber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// noopCapturer writes a placeholder file so the thumbnail cache sees
// generation succeed.
type noopCapturer struct{}

func (noopCapturer) Capture(_ context.Context, _, _, outPath string) error {
	return os.WriteFile(outPath, []byte("jpeg"), 0o644)
}

type libDirs struct {
	videos    string
	processed string
}

func newTestLibrary(t *testing.T, prober *stubProber) (*Library, libDirs) {
	t.Helper()
	dirs := libDirs{videos: t.TempDir(), processed: t.TempDir()}
	thumbs := thumbnail.New(dirs.videos, t.TempDir(), "/api/thumbnails", noopCapturer{})
	lib := New(dirs.videos, dirs.processed, "/api/videos", prober, thumbs)
	return lib, dirs
}

func writeVideo(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGetAllListsSupportedVideos(t *testing.T) {
	t.Parallel()

	prober := &stubProber{results: []probeResult{{120, true}}}
	lib, dirs := newTestLibrary(t, prober)

	writeVideo(t, dirs.videos, "bravo.mp4", 100)
	writeVideo(t, dirs.videos, "alpha.mkv", 200)
	writeVideo(t, dirs.videos, "notes.txt", 10)
	if err := os.Mkdir(filepath.Join(dirs.videos, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	records, err := lib.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("GetAll() returned %d records, want 2", len(records))
	}

	// ReadDir enumerates lexically and collection is positional.
	if records[0].FileName != "alpha.mkv" || records[1].FileName != "bravo.mp4" {
		t.Errorf("order = [%s, %s], want [alpha.mkv, bravo.mp4]",
			records[0].FileName, records[1].FileName)
	}
}

func TestGetAllRecordFields(t *testing.T) {
	t.Parallel()

	prober := &stubProber{results: []probeResult{{95, true}}}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "my_summer-trip.mp4", 4096)

	records, err := lib.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.FileName != "my_summer-trip.mp4" {
		t.Errorf("FileName = %q", rec.FileName)
	}
	if rec.Title != "my summer trip" {
		t.Errorf("Title = %q, want %q", rec.Title, "my summer trip")
	}
	if rec.Size != 4096 {
		t.Errorf("Size = %d, want 4096", rec.Size)
	}
	if rec.Duration == nil || *rec.Duration != 95 {
		t.Errorf("Duration = %v, want 95", rec.Duration)
	}
	if rec.VideoURL != "/api/videos/my_summer-trip.mp4" {
		t.Errorf("VideoURL = %q", rec.VideoURL)
	}
	if rec.MimeType != "video/mp4" {
		t.Errorf("MimeType = %q, want video/mp4", rec.MimeType)
	}
	if !strings.HasPrefix(rec.ThumbnailURL, "/api/thumbnails/my_summer-trip.jpg?v=") {
		t.Errorf("ThumbnailURL = %q", rec.ThumbnailURL)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

// One valid file, one unsupported extension, one entry whose stat fails:
// the listing returns exactly the valid record and never errors.
func TestGetAllSkipsEntriesThatFailStat(t *testing.T) {
	t.Parallel()

	prober := &stubProber{results: []probeResult{{60, true}}}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "good.mp4", 100)
	writeVideo(t, dirs.videos, "notes.txt", 10)

	// A dangling symlink is listed by ReadDir but fails the follow-up stat.
	target := filepath.Join(dirs.videos, "gone.mp4")
	if err := os.Symlink(target, filepath.Join(dirs.videos, "broken.mp4")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	records, err := lib.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(records))
	}
	if records[0].FileName != "good.mp4" {
		t.Errorf("FileName = %q, want good.mp4", records[0].FileName)
	}
}

func TestGetAllOmitsDurationWhenProbeFails(t *testing.T) {
	t.Parallel()

	prober := &stubProber{} // always fails
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	records, err := lib.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (record survives without duration)", len(records))
	}
	if records[0].Duration != nil {
		t.Errorf("Duration = %d, want nil", *records[0].Duration)
	}
	if records[0].ThumbnailURL != "" {
		t.Errorf("ThumbnailURL = %q, want empty without duration", records[0].ThumbnailURL)
	}

	// Listing path probes once per file, no retries.
	if prober.callCount() != 1 {
		t.Errorf("probe calls = %d, want 1", prober.callCount())
	}
}

func TestGetAllUsesDurationSidecar(t *testing.T) {
	t.Parallel()

	prober := &stubProber{}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	sidecar, _ := json.Marshal(durationSidecar{Duration: 77, ProbedAt: time.Now()})
	if err := os.WriteFile(filepath.Join(dirs.processed, "movie.duration.json"), sidecar, 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := lib.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if records[0].Duration == nil || *records[0].Duration != 77 {
		t.Errorf("Duration = %v, want 77 from side-file", records[0].Duration)
	}
	if prober.callCount() != 0 {
		t.Errorf("probe calls = %d, want 0 when side-file exists", prober.callCount())
	}
}

func TestGetAllWritesSidecarAfterProbe(t *testing.T) {
	t.Parallel()

	prober := &stubProber{results: []probeResult{{42, true}}}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	if _, err := lib.GetAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dirs.processed, "movie.duration.json"))
	if err != nil {
		t.Fatalf("side-file not written: %v", err)
	}
	var sc durationSidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		t.Fatal(err)
	}
	if sc.Duration != 42 {
		t.Errorf("side-file duration = %d, want 42", sc.Duration)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	prober := &stubProber{results: []probeResult{{60, true}}}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	rec, err := lib.Get(context.Background(), "movie.mp4")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.FileName != "movie.mp4" {
		t.Errorf("FileName = %q", rec.FileName)
	}

	if _, err := lib.Get(context.Background(), "absent.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) error = %v, want ErrNotFound", err)
	}
	if _, err := lib.Get(context.Background(), "notes.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unsupported ext) error = %v, want ErrNotFound", err)
	}
}

func TestRegenerateRetriesProbe(t *testing.T) {
	t.Parallel()

	// Two failures, then success: all within the per-file retry budget.
	prober := &stubProber{results: []probeResult{{0, false}, {0, false}, {33, true}}}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	records, missing, err := lib.Regenerate(context.Background(), false)
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if missing != 0 {
		t.Errorf("missing = %d, want 0", missing)
	}
	if len(records) != 1 || records[0].Duration == nil || *records[0].Duration != 33 {
		t.Fatalf("records = %+v, want one with duration 33", records)
	}
	if prober.callCount() != 3 {
		t.Errorf("probe calls = %d, want 3", prober.callCount())
	}
}

func TestRegenerateCountsMissingDurations(t *testing.T) {
	t.Parallel()

	prober := &stubProber{} // every attempt fails
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	records, missing, err := lib.Regenerate(context.Background(), false)
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if missing != 1 {
		t.Errorf("missing = %d, want 1", missing)
	}
	if prober.callCount() != 3 {
		t.Errorf("probe calls = %d, want exactly 3 attempts", prober.callCount())
	}
}

func TestRegenerateIgnoresStaleSidecar(t *testing.T) {
	t.Parallel()

	prober := &stubProber{results: []probeResult{{50, true}}}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	stale, _ := json.Marshal(durationSidecar{Duration: 999, ProbedAt: time.Now()})
	if err := os.WriteFile(filepath.Join(dirs.processed, "movie.duration.json"), stale, 0o644); err != nil {
		t.Fatal(err)
	}

	records, _, err := lib.Regenerate(context.Background(), false)
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if records[0].Duration == nil || *records[0].Duration != 50 {
		t.Errorf("Duration = %v, want fresh probe result 50", records[0].Duration)
	}

	// The side-file is rewritten with the fresh value.
	data, err := os.ReadFile(filepath.Join(dirs.processed, "movie.duration.json"))
	if err != nil {
		t.Fatal(err)
	}
	var sc durationSidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		t.Fatal(err)
	}
	if sc.Duration != 50 {
		t.Errorf("rewritten side-file duration = %d, want 50", sc.Duration)
	}
}

func TestEnsureThumbnail(t *testing.T) {
	t.Parallel()

	prober := &stubProber{results: []probeResult{{80, true}}}
	lib, dirs := newTestLibrary(t, prober)
	writeVideo(t, dirs.videos, "movie.mp4", 100)

	url, err := lib.EnsureThumbnail(context.Background(), "movie.mp4", false)
	if err != nil {
		t.Fatalf("EnsureThumbnail() error = %v", err)
	}
	if !strings.HasPrefix(url, "/api/thumbnails/movie.jpg?v=") {
		t.Errorf("URL = %q", url)
	}

	if _, err := lib.EnsureThumbnail(context.Background(), "absent.mp4", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("EnsureThumbnail(absent) error = %v, want ErrNotFound", err)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fileName string
		expected string
	}{
		{"movie.mp4", "movie"},
		{"my_summer_trip.mp4", "my summer trip"},
		{"beach-day-2024.mkv", "beach day 2024"},
		{"mixed_name-style.webm", "mixed name style"},
		{"no extension", "no extension"},
		{"dots.in.name.mp4", "dots.in.name"},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			if got := Title(tt.fileName); got != tt.expected {
				t.Errorf("Title(%q) = %q, want %q", tt.fileName, got, tt.expected)
			}
		})
	}
}

func TestScanSkipsUnsupportedAndDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeVideo(t, dir, "movie.mp4", 10)
	writeVideo(t, dir, "readme.md", 10)
	if err := os.Mkdir(filepath.Join(dir, "clips.mp4"), 0o755); err == nil {
		// A directory with a video extension must still be skipped.
		entries, err := scan(dir)
		if err != nil {
			t.Fatalf("scan() error = %v", err)
		}
		if len(entries) != 1 || entries[0].name != "movie.mp4" {
			t.Errorf("scan() = %+v, want only movie.mp4", entries)
		}
	}
}
