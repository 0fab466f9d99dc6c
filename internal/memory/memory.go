package memory

import (
	"runtime"
	"sync"
	"time"

	"blend-browser/internal/logging"
	"blend-browser/internal/metrics"
)

// Config controls the heap monitor thresholds. The fractions are relative
// to Limit and form a hysteresis band: extraction pauses at PauseAt and
// does not resume until the heap drops back below ResumeAt, so the scanner
// is not toggled on every sample.
type Config struct {
	// Limit is the heap budget in bytes. Zero disables monitoring.
	Limit int64
	// PauseAt is the heap fraction at which thumbnail extraction pauses.
	PauseAt float64
	// ResumeAt is the heap fraction below which extraction resumes.
	ResumeAt float64
	// Sample is the polling interval.
	Sample time.Duration
}

// DefaultConfig returns the monitor thresholds used in production. The
// band is sized for thumbnail extraction: each in-flight .blend preview
// decodes to an RGBA pixel buffer of up to 4 MiB (1024x1024 at 4 bytes
// per pixel), so a parse pool can allocate tens of MiB between samples.
// Pausing at 85% leaves room for the buffers already in flight.
func DefaultConfig() Config {
	return Config{
		Limit:    EffectiveLimit(),
		PauseAt:  0.85,
		ResumeAt: 0.70,
		Sample:   5 * time.Second,
	}
}

// Monitor samples heap usage and gates thumbnail extraction when the
// process approaches its memory limit. The scanner calls WaitIfPaused
// between batches; everything else runs unthrottled.
type Monitor struct {
	config Config

	mu     sync.Mutex
	paused bool
	resume chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor with the given thresholds.
func NewMonitor(config Config) *Monitor {
	return &Monitor{
		config: config,
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

// Start begins background sampling. It is a no-op when no limit is set.
func (m *Monitor) Start() {
	if m.config.Limit <= 0 {
		logging.Info("Memory monitor: no limit configured, extraction backpressure disabled")
		return
	}
	logging.Info("Memory monitor: pausing extraction above %s, resuming below %s",
		formatBytes(int64(float64(m.config.Limit)*m.config.PauseAt)),
		formatBytes(int64(float64(m.config.Limit)*m.config.ResumeAt)))
	go m.run()
}

// Stop halts sampling and releases any goroutine blocked in WaitIfPaused.
// Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.config.Sample)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample reads the live heap and applies the hysteresis band. HeapInuse
// tracks the pixel buffers held by in-flight extractions more closely
// than total allocations, which include freed spans the runtime has not
// returned yet.
func (m *Monitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ratio := float64(stats.HeapInuse) / float64(m.config.Limit)
	metrics.MemoryUsageRatio.Set(ratio)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case !m.paused && ratio >= m.config.PauseAt:
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		logging.Warn("Memory monitor: heap at %.0f%% of %s, pausing thumbnail extraction",
			ratio*100, formatBytes(m.config.Limit))
		// Collect the buffers from completed extractions now rather
		// than waiting for the next GC cycle.
		go runtime.GC()
	case m.paused && ratio < m.config.ResumeAt:
		m.paused = false
		metrics.MemoryPaused.Set(0)
		logging.Info("Memory monitor: heap back at %.0f%%, resuming thumbnail extraction", ratio*100)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// IsPaused reports whether extraction is currently gated.
func (m *Monitor) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// WaitIfPaused blocks while extraction is gated. It returns false when
// the monitor was stopped while waiting, signalling the caller to abort
// its scan instead of continuing.
func (m *Monitor) WaitIfPaused() bool {
	for {
		m.mu.Lock()
		if !m.paused {
			m.mu.Unlock()
			return true
		}
		resume := m.resume
		m.mu.Unlock()

		select {
		case <-resume:
		case <-m.stop:
			return false
		}
	}
}
