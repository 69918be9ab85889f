package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"video-library/internal/logging"
	"video-library/internal/sprite"
)

type spriteRequest struct {
	FileName string `json:"fileName"`
}

type spriteResponse struct {
	OK       bool   `json:"ok"`
	FileName string `json:"fileName"`
}

// GenerateSprite launches the sprite generator for one video and waits for
// it to exit. A failed job is reported but never retried automatically; the
// client may re-trigger.
func (h *Handlers) GenerateSprite(w http.ResponseWriter, r *http.Request) {
	var req spriteRequest
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

	if err := h.sprites.Generate(r.Context(), req.FileName); err != nil {
		switch {
		case errors.Is(err, sprite.ErrVideoNotFound):
			writeJSONError(w, "video not found", http.StatusNotFound)
		case errors.Is(err, sprite.ErrScriptMissing):
			logging.Error("sprite generation rejected: %v", err)
			writeJSONError(w, "sprite generator unavailable", http.StatusInternalServerError)
		default:
			logging.Error("sprite generation failed for %s: %v", req.FileName, err)
			writeJSONError(w, "sprite generation failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, spriteResponse{OK: true, FileName: req.FileName})
}

// SpriteProgress reports progress for a running or finished sprite job.
// Entries persist across requests until overwritten by a new run for the
// same file name.
func (h *Handlers) SpriteProgress(w http.ResponseWriter, r *http.Request) {
	fileName := pathName(r)
	if !validateAssetName(fileName) {
		writeJSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	progress, ok := h.progress.Get(fileName)
	if !ok {
		writeJSONError(w, "no sprite job for file", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, progress)
}
