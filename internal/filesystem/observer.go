package filesystem

// Observer records filesystem operation metrics. Implementations are provided
// by the metrics package to break the import cycle between filesystem and metrics.
type Observer interface {
	// ObserveOperation records duration and error status for a filesystem
	// operation. volume is the resolved mount label (e.g., "library",
	// "cache", "database"); operation is "stat", "open", "read" or "write".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	// ObserveRetryAttempt records a retry of an operation on a volume.
	ObserveRetryAttempt(retryOp, volume string)

	// ObserveRetryFailure records an operation that failed after all retries.
	ObserveRetryFailure(retryOp, volume string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}
