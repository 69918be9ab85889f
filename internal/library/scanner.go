package library

import (
	"os"
	"path/filepath"
	"strings"

	"video-library/internal/filesystem"
	"video-library/internal/logging"
	"video-library/internal/mediatypes"
	"video-library/internal/metrics"
)

// entry is one candidate video file found in the storage directory.
type entry struct {
	name string
	info os.FileInfo
}

// scan lists the video-storage directory and keeps entries whose extension
// is in the supported-format table. An entry that cannot be stat-ed is
// skipped with a log line; a single corrupt or inaccessible file must never
// fail the whole listing.
func scan(dir string) ([]entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if !mediatypes.IsVideo(ext) {
			continue
		}

		info, err := filesystem.Stat(filepath.Join(dir, de.Name()), filesystem.DefaultRetryConfig())
		if err != nil {
			logging.Warn("skipping unreadable entry %s: %v", de.Name(), err)
			metrics.LibraryFilesSkipped.Inc()
			continue
		}

		entries = append(entries, entry{name: de.Name(), info: info})
	}

	return entries, nil
}
