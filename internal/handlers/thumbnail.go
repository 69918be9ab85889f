package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"video-library/internal/library"
	"video-library/internal/logging"
)

type thumbnailRequest struct {
	FileName string `json:"fileName"`
	Force    bool   `json:"force"`
}

type thumbnailResponse struct {
	OK           bool   `json:"ok"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// CreateThumbnail generates (or regenerates, with force) the thumbnail for
// one video and returns its cache-busted URL.
func (h *Handlers) CreateThumbnail(w http.ResponseWriter, r *http.Request) {
	var req thumbnailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		writeJSONError(w, "fileName is required", http.StatusBadRequest)
		return
	}
	if !validateAssetName(req.FileName) {
		writeJSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	thumbURL, err := h.library.EnsureThumbnail(r.Context(), req.FileName, req.Force)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "video not found", http.StatusNotFound)
			return
		}
		logging.Error("thumbnail generation failed for %s: %v", req.FileName, err)
		writeJSONError(w, "thumbnail generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, thumbnailResponse{OK: true, ThumbnailURL: thumbURL})
}
