package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"video-library/internal/library"
	"video-library/internal/logging"
)

// ListVideos returns one metadata record per video in the storage
// directory. Records are derived live from the filesystem; a per-file
// failure omits that record rather than failing the listing.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	records, err := h.library.GetAll(r.Context())
	if err != nil {
		logging.Error("video listing failed: %v", err)
		writeJSONError(w, "failed to list videos", http.StatusInternalServerError)
		return
	}

	logging.Debug("ListVideos completed in %v, %d records", time.Since(start), len(records))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, records)
}

// GetVideo returns the metadata record for a single video.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	fileName := pathName(r)
	if !validateAssetName(fileName) {
		writeJSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	record, err := h.library.Get(r.Context(), fileName)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "video not found", http.StatusNotFound)
		} else {
			logging.Error("failed to build record for %s: %v", fileName, err)
			writeJSONError(w, "failed to get video metadata", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, record)
}

type regenerateRequest struct {
	Force bool `json:"force"`
}

type regenerateResponse struct {
	Videos           []library.VideoRecord `json:"videos"`
	MissingDurations int                   `json:"missingDurations"`
}

// RegenerateMetadata re-derives every record from scratch, applying the
// probe retry policy and optionally forcing thumbnail regeneration. The
// missing-duration count in the response is a health signal, not an error.
func (h *Handlers) RegenerateMetadata(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if r.Body != nil {
		// An empty or absent body means force=false.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	logging.Info("metadata regeneration started (force=%v)", req.Force)

	records, missing, err := h.library.Regenerate(r.Context(), req.Force)
	if err != nil {
		logging.Error("metadata regeneration failed: %v", err)
		writeJSONError(w, "failed to regenerate metadata", http.StatusInternalServerError)
		return
	}

	logging.Info("metadata regeneration finished in %v", time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, regenerateResponse{Videos: records, MissingDurations: missing})
}
