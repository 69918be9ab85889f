package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"video-library/internal/logging"

	"github.com/gorilla/mux"
)

// pathName returns the file-name path variable, decoded by the router with
// spaces and special characters preserved verbatim.
func pathName(r *http.Request) string {
	return mux.Vars(r)["name"]
}

// writeJSON encodes v as JSON and writes it to the response writer. Encoding
// or write errors are logged since we cannot recover from them here.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// validateAssetName rejects file names that could escape the storage root:
// absolute paths and any parent-directory segment. This is the sole security
// boundary protecting the storage directories from traversal, and it runs
// before any filesystem access. Everything else in the name (spaces, unicode)
// is preserved verbatim since names are exact join keys.
func validateAssetName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return false
	}
	for _, segment := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if segment == ".." {
			return false
		}
	}
	return true
}
