package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"video-library/internal/filesystem"
	"video-library/internal/logging"
	"video-library/internal/mediatypes"
	"video-library/internal/metrics"
	"video-library/internal/streaming"

	"github.com/gorilla/mux"
)

// The three asset classes served from the storage root. Anything else is a
// client error, never a filesystem lookup.
const (
	classVideos     = "videos"
	classThumbnails = "thumbnails"
	classProcessed  = "processed"
)

// GetAsset serves bytes for one asset: a source video, a thumbnail, or a
// sprite output. Videos honor single byte-range requests; derived assets are
// served whole with long-lived cache headers since their URLs carry a
// version token instead.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	class := vars["class"]
	name := vars["name"]

	var dir string
	switch class {
	case classVideos:
		dir = h.config.VideosDir
	case classThumbnails:
		dir = h.config.ThumbnailDir
	case classProcessed:
		dir = h.config.ProcessedDir
	default:
		writeJSONError(w, "invalid resource class", http.StatusBadRequest)
		return
	}

	if !validateAssetName(name) {
		writeJSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	path := filepath.Join(dir, name)
	info, err := filesystem.Stat(path, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, "file not found", http.StatusNotFound)
		} else {
			logging.Error("failed to stat asset %s: %v", path, err)
			writeJSONError(w, "failed to access file", http.StatusInternalServerError)
		}
		return
	}
	if info.IsDir() {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	ext := strings.ToLower(filepath.Ext(name))
	if class == classVideos {
		w.Header().Set("Content-Type", mediatypes.VideoMime(ext))
		// Videos are large and mutate rarely but unpredictably.
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Content-Type", mediatypes.AssetMime(ext))
		// Derived assets are versioned via the URL query token.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	w.Header().Set("Accept-Ranges", "bytes")

	size := info.Size()

	if class == classVideos {
		if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
			h.serveRange(w, r, path, size, rangeHeader)
			return
		}
	}

	h.serveFull(w, r, class, path, size)
}

// serveFull writes the whole file with an exact Content-Length.
func (h *Handlers) serveFull(w http.ResponseWriter, r *http.Request, class, path string, size int64) {
	file, err := filesystem.Open(path, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Error("failed to open asset %s: %v", path, err)
		writeJSONError(w, "failed to open file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	var written int64
	if class == classVideos {
		written, err = streaming.Copy(r.Context(), w, file, streaming.DefaultConfig())
	} else {
		written, err = io.Copy(w, file)
	}
	if err != nil {
		logging.Debug("asset stream ended early for %s: %v", path, err)
	}
	metrics.AssetBytesServed.WithLabelValues(class).Add(float64(written))
}

// serveRange honors a single-range byte request against a video file.
// Malformed range headers fall back to a full response; a range beyond EOF
// is unsatisfiable.
func (h *Handlers) serveRange(w http.ResponseWriter, r *http.Request, path string, size int64, rangeHeader string) {
	start, end, ok := parseRange(rangeHeader, size)
	if !ok {
		h.serveFull(w, r, classVideos, path, size)
		return
	}
	if start >= size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeJSONError(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	file, err := filesystem.Open(path, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Error("failed to open asset %s: %v", path, err)
		writeJSONError(w, "failed to open file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		logging.Error("failed to seek %s to %d: %v", path, start, err)
		writeJSONError(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	span := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(span, 10))
	w.WriteHeader(http.StatusPartialContent)

	metrics.AssetRangeRequests.Inc()

	written, err := streaming.Copy(r.Context(), w, io.LimitReader(file, span), streaming.DefaultConfig())
	if err != nil {
		logging.Debug("range stream ended early for %s: %v", path, err)
	}
	metrics.AssetBytesServed.WithLabelValues(classVideos).Add(float64(written))
}

// parseRange parses a single-range header of the form "bytes=start-end"
// where end is optional (meaning to EOF). Multi-range and suffix-only forms
// are not supported and report !ok. An in-bounds end is clamped to EOF.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found || startStr == "" {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	if strings.TrimSpace(endStr) == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end >= size {
			end = size - 1
		}
	}

	return start, end, true
}
