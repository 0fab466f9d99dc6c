package handlers

import (
	"encoding/json"
	"net/http"

	"blend-browser/internal/logging"
)

// writeJSON serializes v to the response. The status line has already
// gone out by the time an encode error can surface, so it is only logged.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes the one-field status body used by the tag
// mutation endpoints.
func writeJSONStatus(w http.ResponseWriter, status string) {
	writeJSON(w, map[string]string{"status": status})
}
