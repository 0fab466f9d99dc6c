package handlers

import (
	"net/http"

	"blend-browser/internal/startup"
)

// versionResponse adds the application name to the build information so
// clients can tell which service answered.
type versionResponse struct {
	App string `json:"app"`
	startup.BuildInfo
}

// GetVersion reports build information for the running binary.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, versionResponse{
		App:       "blend-browser",
		BuildInfo: startup.GetBuildInfo(),
	})
}
