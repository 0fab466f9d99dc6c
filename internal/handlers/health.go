package handlers

import (
	"net/http"
	"runtime"
	"time"

	"blend-browser/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse is the body of the detailed /health endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	Ready            bool   `json:"ready"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	Scanning         bool   `json:"scanning"`
	LastScanned      string `json:"lastScanned,omitempty"`
	InitialScanError string `json:"initialScanError,omitempty"`

	FilesScanned int64 `json:"filesScanned"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	TotalFiles         int `json:"totalFiles,omitempty"`
	FilesWithThumbnail int `json:"filesWithThumbnail,omitempty"`
}

// HealthCheck reports detailed service health: starting until the first
// library scan lands, degraded when that scan failed, healthy otherwise.
// Not-ready responses carry a 503 so load balancers hold traffic.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	scan := h.scanner.GetHealthStatus()
	stats := h.db.GetStats()

	response := HealthResponse{
		Status:             statusStarting,
		Ready:              scan.Ready,
		Version:            startup.Version,
		Uptime:             scan.Uptime,
		Scanning:           scan.Scanning,
		FilesScanned:       scan.FilesScanned,
		GoVersion:          runtime.Version(),
		NumCPU:             runtime.NumCPU(),
		NumGoroutine:       runtime.NumGoroutine(),
		TotalFiles:         stats.TotalFiles,
		FilesWithThumbnail: stats.FilesWithThumbnail,
	}
	if scan.Ready {
		response.Status = statusHealthy
	}
	if scan.InitialScanError != "" {
		response.Status = statusDegraded
		response.InitialScanError = scan.InitialScanError
	}
	if !scan.LastScanned.IsZero() {
		response.LastScanned = scan.LastScanned.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if !scan.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// LivenessCheck answers 200 whenever the process is serving at all. HEAD
// gets headers only.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, map[string]string{"status": "alive"})
}

// ReadinessCheck answers 200 once the initial scan has completed.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if !h.scanner.IsReady() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}
