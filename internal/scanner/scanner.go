package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"blend-browser/internal/database"
	"blend-browser/internal/logging"
	"blend-browser/internal/memory"
	"blend-browser/internal/metrics"
)

const (
	// Delay between batches to allow other operations
	batchDelay = 10 * time.Millisecond

	// Default polling interval for change detection
	defaultPollInterval = 30 * time.Second
)

// Scanner keeps the library database in sync with the blend files on disk.
type Scanner struct {
	db                  *database.Database
	libraryDir          string
	scanInterval        time.Duration
	pollInterval        time.Duration
	stopChan            chan struct{}
	scanMu              sync.Mutex
	isScanning          bool
	lastScanTime        time.Time
	initialScanComplete bool
	initialScanError    error
	startTime           time.Time

	// Progress tracking
	filesScanned atomic.Int64
	scanProgress atomic.Value

	// Parallel walker configuration
	parallelConfig ParallelWalkerConfig

	// Callback when a scan completes
	onScanComplete func()

	// Optional backpressure for batch inserts
	memMonitor *memory.Monitor

	// Fingerprint of the library at the end of the last scan
	stateMu sync.RWMutex
	lastSig librarySignature
}

// ScanProgress tracks the current scan progress
type ScanProgress struct {
	FilesScanned int64     `json:"filesScanned"`
	IsScanning   bool      `json:"isScanning"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
}

// New creates a new Scanner instance.
func New(db *database.Database, libraryDir string, scanInterval time.Duration) *Scanner {
	s := &Scanner{
		db:             db,
		libraryDir:     libraryDir,
		scanInterval:   scanInterval,
		pollInterval:   defaultPollInterval,
		stopChan:       make(chan struct{}),
		startTime:      time.Now(),
		parallelConfig: DefaultParallelWalkerConfig(),
	}
	s.scanProgress.Store(ScanProgress{})
	return s
}

// SetPollInterval sets the interval for polling-based change detection.
func (s *Scanner) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		s.pollInterval = interval
	}
}

// SetParallelConfig sets the parallel walker configuration.
func (s *Scanner) SetParallelConfig(config ParallelWalkerConfig) {
	s.parallelConfig = config
}

// SetOnScanComplete sets a callback to be invoked when a scan completes.
func (s *Scanner) SetOnScanComplete(callback func()) {
	s.onScanComplete = callback
}

// SetMemoryMonitor attaches a memory monitor used to pause batch inserts
// under memory pressure.
func (s *Scanner) SetMemoryMonitor(monitor *memory.Monitor) {
	s.memMonitor = monitor
}

// Start begins the scanning process.
func (s *Scanner) Start() error {
	// Start initial scan in background
	go func() {
		logging.Info("Starting initial library scan in background...")
		if err := s.Scan(); err != nil {
			logging.Error("Initial scan error: %v", err)
			s.scanMu.Lock()
			s.initialScanError = err
			s.scanMu.Unlock()
		}
	}()

	go s.pollForChanges()
	go s.periodicScan()

	return nil
}

// Stop stops the scanning process.
func (s *Scanner) Stop() {
	close(s.stopChan)
}

// IsReady returns true once the initial scan has completed.
func (s *Scanner) IsReady() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.initialScanComplete
}

// getProgress safely retrieves the current ScanProgress.
func (s *Scanner) getProgress() ScanProgress {
	if progress, ok := s.scanProgress.Load().(ScanProgress); ok {
		return progress
	}
	return ScanProgress{}
}

// GetHealthStatus returns detailed health information.
func (s *Scanner) GetHealthStatus() HealthStatus {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	progress := s.getProgress()

	status := HealthStatus{
		Ready:        s.initialScanComplete,
		Scanning:     s.isScanning,
		StartTime:    s.startTime,
		Uptime:       time.Since(s.startTime).String(),
		LastScanned:  s.lastScanTime,
		FilesScanned: s.filesScanned.Load(),
	}

	if s.isScanning {
		status.ScanProgress = &progress
	}

	if s.initialScanError != nil {
		status.InitialScanError = s.initialScanError.Error()
	}

	return status
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready            bool          `json:"ready"`
	Scanning         bool          `json:"scanning"`
	StartTime        time.Time     `json:"startTime"`
	Uptime           string        `json:"uptime"`
	LastScanned      time.Time     `json:"lastScanned,omitempty"`
	InitialScanError string        `json:"initialScanError,omitempty"`
	FilesScanned     int64         `json:"filesScanned"`
	ScanProgress     *ScanProgress `json:"scanProgress,omitempty"`
}

// pollForChanges periodically checks for library changes.
func (s *Scanner) pollForChanges() {
	// Wait for initial scan to complete
	for !s.IsReady() {
		select {
		case <-time.After(1 * time.Second):
		case <-s.stopChan:
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := s.detectChanges()
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Library changes detected, triggering re-scan")
				if err := s.Scan(); err != nil {
					logging.Error("Re-scan after change detection failed: %v", err)
				}
			}
		case <-s.stopChan:
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// librarySignature is a cheap fingerprint of the library: the root
// mtime, the count of visible top-level entries and the mtime of each
// top-level subdirectory. Comparing signatures catches adds, removes and
// nested edits without a recursive walk, which matters on NFS.
type librarySignature struct {
	rootMod    time.Time
	topLevel   int
	subdirMods map[string]time.Time
}

// captureSignature fingerprints dir with one stat per top-level entry.
func captureSignature(dir string) (librarySignature, error) {
	rootInfo, err := os.Stat(dir)
	if err != nil {
		return librarySignature{}, fmt.Errorf("failed to stat library directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return librarySignature{}, fmt.Errorf("failed to read library directory: %w", err)
	}

	sig := librarySignature{
		rootMod:    rootInfo.ModTime(),
		subdirMods: make(map[string]time.Time),
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sig.topLevel++
		if !entry.IsDir() {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, entry.Name())); err == nil {
			sig.subdirMods[entry.Name()] = info.ModTime()
		}
	}
	return sig, nil
}

// changedSince describes the first difference against an older signature,
// or returns "" when nothing moved.
func (sig librarySignature) changedSince(prev librarySignature) string {
	if sig.rootMod.After(prev.rootMod) {
		return "library root modified"
	}
	if sig.topLevel != prev.topLevel {
		return fmt.Sprintf("top-level entries %d -> %d", prev.topLevel, sig.topLevel)
	}
	for name, mod := range sig.subdirMods {
		last, seen := prev.subdirMods[name]
		switch {
		case !seen:
			return "new subdirectory " + name
		case mod.After(last):
			return "subdirectory " + name + " modified"
		}
	}
	return ""
}

// detectChanges compares a fresh library fingerprint against the one
// captured after the last scan.
func (s *Scanner) detectChanges() (bool, error) {
	start := time.Now()
	defer func() {
		metrics.ScannerPollDuration.Observe(time.Since(start).Seconds())
		metrics.ScannerPollChecksTotal.Inc()
	}()

	sig, err := captureSignature(s.libraryDir)
	if err != nil {
		return false, err
	}

	s.stateMu.RLock()
	reason := sig.changedSince(s.lastSig)
	s.stateMu.RUnlock()

	if reason == "" {
		return false, nil
	}
	logging.Debug("Library change detected: %s", reason)
	metrics.ScannerPollChangesDetected.Inc()
	return true, nil
}

// updateLastKnownState refreshes the stored fingerprint after a scan.
func (s *Scanner) updateLastKnownState() {
	sig, err := captureSignature(s.libraryDir)
	if err != nil {
		logging.Warn("Failed to refresh library signature: %v", err)
		return
	}

	s.stateMu.Lock()
	s.lastSig = sig
	s.stateMu.Unlock()

	logging.Debug("Library signature refreshed: topLevel=%d, subdirs=%d",
		sig.topLevel, len(sig.subdirMods))
}

// Scan performs a full scan of the library directory.
func (s *Scanner) Scan() error {
	if !s.tryStartScan() {
		logging.Info("Scan already in progress, skipping...")
		return nil
	}
	defer s.finishScan()

	metrics.ScannerIsRunning.Set(1)
	defer metrics.ScannerIsRunning.Set(0)
	metrics.ScannerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting library scan...")

	s.filesScanned.Store(0)
	s.scanProgress.Store(ScanProgress{
		IsScanning: true,
		StartedAt:  startTime,
	})

	scanTime := time.Now()

	walker := NewParallelWalker(s.libraryDir, s.parallelConfig)
	defer walker.Stop()

	go func() {
		select {
		case <-s.stopChan:
			walker.Stop()
		case <-walker.ctx.Done():
		}
	}()

	files, err := walker.Walk()
	if err != nil && !errors.Is(err, fs.SkipAll) {
		metrics.ScannerErrors.Inc()
		return fmt.Errorf("parallel walk error: %w", err)
	}

	totalFiles, walkErrors := walker.Stats()
	s.filesScanned.Store(totalFiles)
	s.updateProgress(startTime)

	if err := s.processBatchedFiles(files, startTime); err != nil {
		metrics.ScannerErrors.Inc()
		return err
	}

	// Delete files that no longer exist
	if err := s.cleanupMissingFiles(scanTime); err != nil {
		logging.Error("Error cleaning up missing files: %v", err)
		metrics.ScannerErrors.Inc()
	}

	s.finalizeScan(startTime, totalFiles)
	s.updateLastKnownState()

	duration := time.Since(startTime).Seconds()
	metrics.ScannerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScannerLastRunDuration.Set(duration)
	metrics.ScannerFilesProcessed.Add(float64(totalFiles))
	if walkErrors > 0 {
		metrics.ScannerErrors.Add(float64(walkErrors))
	}

	return nil
}

// processBatchedFiles inserts files into the database in batches.
func (s *Scanner) processBatchedFiles(files []database.BlendFile, startTime time.Time) error {
	totalFiles := len(files)
	logging.Info("Processing %d files in batches of %d", totalFiles, s.parallelConfig.BatchSize)

	for i := 0; i < totalFiles; i += s.parallelConfig.BatchSize {
		select {
		case <-s.stopChan:
			return fs.SkipAll
		default:
		}

		if s.memMonitor != nil && !s.memMonitor.WaitIfPaused() {
			return fs.SkipAll
		}

		end := i + s.parallelConfig.BatchSize
		if end > totalFiles {
			end = totalFiles
		}

		if err := s.processBatch(files[i:end]); err != nil {
			logging.Error("Error processing batch: %v", err)
		}

		s.updateProgress(startTime)

		time.Sleep(batchDelay)

		if (i+s.parallelConfig.BatchSize)%5000 == 0 || end == totalFiles {
			logging.Info("Database insert progress: %d/%d files", end, totalFiles)
		}
	}

	return nil
}

// tryStartScan attempts to start a scan, returns false if already in progress.
func (s *Scanner) tryStartScan() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if s.isScanning {
		return false
	}
	s.isScanning = true
	return true
}

// finishScan marks scanning as complete.
func (s *Scanner) finishScan() {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.isScanning = false
	s.initialScanComplete = true
}

// updateProgress updates the scan progress.
func (s *Scanner) updateProgress(startTime time.Time) {
	s.scanProgress.Store(ScanProgress{
		FilesScanned: s.filesScanned.Load(),
		IsScanning:   true,
		StartedAt:    startTime,
	})
}

// finalizeScan completes the scan and refreshes the cached stats.
func (s *Scanner) finalizeScan(startTime time.Time, totalFiles int64) {
	duration := time.Since(startTime)

	s.scanMu.Lock()
	s.lastScanTime = time.Now()
	lastScan := s.lastScanTime
	s.scanMu.Unlock()

	s.scanProgress.Store(ScanProgress{
		FilesScanned: totalFiles,
		IsScanning:   false,
	})

	stats, err := s.db.RefreshStats(context.Background())
	if err != nil {
		logging.Warn("Failed to refresh library stats: %v", err)
	} else {
		stats.LastScanned = lastScan
		stats.ScanDuration = duration.String()
		s.db.UpdateStats(stats)
	}

	if err := s.db.SetLastScan(context.Background(), lastScan); err != nil {
		logging.Warn("Failed to record last scan time: %v", err)
	}

	logging.Info("Scan complete: %d files in %v", totalFiles, duration)

	if s.onScanComplete != nil {
		s.onScanComplete()
	}
}

// processBatch writes a batch of files in a single transaction.
func (s *Scanner) processBatch(files []database.BlendFile) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	for i := range files {
		if err := s.db.UpsertFile(tx, &files[i]); err != nil {
			logging.Warn("Error upserting file %s: %v", files[i].Path, err)
		}
	}

	if err := s.db.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// cleanupMissingFiles removes database rows for files that no longer exist on disk.
func (s *Scanner) cleanupMissingFiles(scanTime time.Time) error {
	tx, err := s.db.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}

	deleted, err := s.db.DeleteMissingFiles(tx, scanTime)
	if err != nil {
		if endErr := s.db.EndBatch(tx, err); endErr != nil {
			logging.Error("failed to end batch after cleanup error: %v", endErr)
		}
		return err
	}

	if err := s.db.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("failed to commit cleanup: %w", err)
	}

	if deleted > 0 {
		logging.Info("Removed %d missing files from library", deleted)
	}

	return nil
}

func (s *Scanner) periodicScan() {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-scan triggered")
			if err := s.Scan(); err != nil {
				logging.Error("periodic re-scan failed: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// IsScanning returns whether a scan is currently in progress.
func (s *Scanner) IsScanning() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.isScanning
}

// LastScanTime returns the time of the last completed scan.
func (s *Scanner) LastScanTime() time.Time {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.lastScanTime
}

// TriggerScan manually triggers a re-scan.
func (s *Scanner) TriggerScan() {
	go func() {
		if err := s.Scan(); err != nil {
			logging.Error("manually triggered re-scan failed: %v", err)
		}
	}()
}

// GetProgress returns the current scan progress.
func (s *Scanner) GetProgress() ScanProgress {
	return s.getProgress()
}
