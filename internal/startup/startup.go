package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"blend-browser/internal/logging"
	"blend-browser/internal/memory"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo describes one registered route for the startup route dump.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	LibraryDir        string
	CacheDir          string
	DataDir           string
	Port              string
	MetricsPort       string
	ScanInterval      time.Duration
	PollInterval      time.Duration
	ThumbnailCapacity int
	ThumbnailWorkers  int
	ThumbnailCooldown time.Duration
	LogStaticFiles    bool
	LogHealthChecks   bool
	MetricsEnabled    bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string

	// Feature flags based on directory availability
	ThumbnailsEnabled bool
}

const rule = "------------------------------------------------------------"

// section prints a banner heading in the startup log.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title)
	logging.Info(rule)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LIBRARY_DIR", "/library")
	v.SetDefault("CACHE_DIR", "/cache")
	v.SetDefault("DATA_DIR", "/data")
	v.SetDefault("PORT", "8080")
	v.SetDefault("METRICS_PORT", "9090")
	v.SetDefault("SCAN_INTERVAL", "30m")
	v.SetDefault("POLL_INTERVAL", "30s")
	v.SetDefault("THUMBNAIL_CACHE_CAPACITY", 0)
	v.SetDefault("THUMBNAIL_WORKERS", 0)
	v.SetDefault("THUMBNAIL_COOLDOWN", "5s")
	v.SetDefault("LOG_STATIC_FILES", false)
	v.SetDefault("LOG_HEALTH_CHECKS", true)
	v.SetDefault("METRICS_ENABLED", true)
}

// LoadConfig loads and validates configuration from the environment and an
// optional CONFIG_FILE, with environment variables taking precedence.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()
	section("CONFIGURATION")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		logging.Info("  Config file:         %s", configFile)
	}

	config := &Config{
		LibraryDir:        v.GetString("LIBRARY_DIR"),
		CacheDir:          v.GetString("CACHE_DIR"),
		DataDir:           v.GetString("DATA_DIR"),
		Port:              v.GetString("PORT"),
		MetricsPort:       v.GetString("METRICS_PORT"),
		ScanInterval:      parseDurationSetting(v, "SCAN_INTERVAL", 30*time.Minute),
		PollInterval:      parseDurationSetting(v, "POLL_INTERVAL", 30*time.Second),
		ThumbnailCapacity: v.GetInt("THUMBNAIL_CACHE_CAPACITY"),
		ThumbnailWorkers:  v.GetInt("THUMBNAIL_WORKERS"),
		ThumbnailCooldown: parseDurationSetting(v, "THUMBNAIL_COOLDOWN", 5*time.Second),
		LogStaticFiles:    v.GetBool("LOG_STATIC_FILES"),
		LogHealthChecks:   v.GetBool("LOG_HEALTH_CHECKS"),
		MetricsEnabled:    v.GetBool("METRICS_ENABLED"),
	}

	for _, setting := range []struct {
		key   string
		value interface{}
	}{
		{"LIBRARY_DIR", config.LibraryDir},
		{"CACHE_DIR", config.CacheDir},
		{"DATA_DIR", config.DataDir},
		{"PORT", config.Port},
		{"METRICS_PORT", config.MetricsPort},
		{"METRICS_ENABLED", config.MetricsEnabled},
		{"SCAN_INTERVAL", config.ScanInterval},
		{"POLL_INTERVAL", config.PollInterval},
		{"THUMBNAIL_COOLDOWN", config.ThumbnailCooldown},
		{"LOG_STATIC_FILES", config.LogStaticFiles},
		{"LOG_HEALTH_CHECKS", config.LogHealthChecks},
		{"LOG_LEVEL", logging.GetLevel()},
	} {
		logging.Info("  %-20s %v", setting.key+":", setting.value)
	}

	// An explicit capacity wins; otherwise size the thumbnail cache from
	// the memory limit so constrained containers hold fewer textures.
	if config.ThumbnailCapacity <= 0 {
		config.ThumbnailCapacity = memory.DefaultCacheCapacity(memory.EffectiveLimit())
		logging.Info("  %-20s %d (derived from memory limit)", "THUMBNAIL_CACHE_CAPACITY:", config.ThumbnailCapacity)
	} else {
		logging.Info("  %-20s %d", "THUMBNAIL_CACHE_CAPACITY:", config.ThumbnailCapacity)
	}

	section("DIRECTORY SETUP")

	if err := config.resolvePaths(); err != nil {
		return nil, err
	}

	// The library may be an NFS mount that comes up late; warn and keep
	// going so the poller can pick it up.
	if err := ensureDirectory(config.LibraryDir, "library"); err != nil {
		logging.Warn("  Library directory issue: %v", err)
	}

	// The database is not optional.
	if err := ensureDirectory(config.DataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	if err := testWriteAccess(config.DataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	config.DatabasePath = filepath.Join(config.DataDir, "library.db")
	config.ThumbnailDir = filepath.Join(config.CacheDir, "thumbnails")
	config.ThumbnailsEnabled = setupOptionalDir(config.ThumbnailDir, "thumbnails")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Thumbnails:  %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// resolvePaths makes the three root directories absolute.
func (c *Config) resolvePaths() error {
	for _, dir := range []struct {
		name string
		path *string
	}{
		{"library", &c.LibraryDir},
		{"cache", &c.CacheDir},
		{"data", &c.DataDir},
	} {
		abs, err := filepath.Abs(*dir.path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s directory path: %w", dir.name, err)
		}
		*dir.path = abs
		logging.Info("  %s directory (absolute): %s", dir.name, abs)
	}
	return nil
}

func parseDurationSetting(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		logging.Warn("  Invalid %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return parsed
}

// setupOptionalDir creates and write-tests a feature directory. Failure
// disables the feature instead of aborting startup.
func setupOptionalDir(path, name string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("  Failed to create %s directory, %s disabled: %v", name, name, err)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("  %s directory is not writable, %s disabled: %v", name, name, err)
		return false
	}
	logging.Debug("  [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogThumbnailInit logs thumbnail cache initialization
func LogThumbnailInit(enabled bool, capacity, workers int) {
	section("THUMBNAIL CACHE INITIALIZATION")
	if !enabled {
		logging.Warn("  Thumbnails disabled (cache directory not writable)")
		logging.Warn("  Placeholder icons will be shown instead")
		return
	}
	logging.Info("  Cache capacity:  %d entries", capacity)
	logging.Info("  Workers:         %d", workers)
}

// MemoryConfig holds the outcome of GOMEMLIMIT configuration for logging
type MemoryConfig struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// LogMemoryConfig logs the memory configuration section
func LogMemoryConfig(mc MemoryConfig) {
	section("MEMORY CONFIGURATION")

	switch {
	case !mc.Configured:
		logging.Info("  GOMEMLIMIT not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	case mc.Source == "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT:      %s (from environment)", formatBytesStartup(mc.GoMemLimit))
	case mc.Source == "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", formatBytesStartup(mc.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%% of container limit)", formatBytesStartup(mc.GoMemLimit), mc.Ratio*100)
	default:
		logging.Info("  GOMEMLIMIT:      %s", formatBytesStartup(mc.GoMemLimit))
	}
}

// LogScannerInit logs scanner initialization
func LogScannerInit(interval time.Duration) {
	section("SCANNER INITIALIZATION")
	logging.Info("  Scan interval: %v", interval)
	logging.Info("  Starting scanner...")
}

// LogScannerStarted logs successful scanner start
func LogScannerStarted() {
	logging.Info("  [OK] Scanner started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Method-less routes (static file server) walk as "*".
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes, grouped by prefix, at debug
// level, plus the effective access-log filters.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		dumpRoutes(router)
	}

	logging.Info("  HTTP logging enabled")
	logging.Info("    Static file logging:  %s", onOffHint(logStaticFiles, "LOG_STATIC_FILES"))
	logging.Info("    Health check logging: %s", onOffHint(logHealthChecks, "LOG_HEALTH_CHECKS"))
}

func onOffHint(on bool, envKey string) string {
	if on {
		return "ON"
	}
	return fmt.Sprintf("OFF (set %s=true to enable)", envKey)
}

func dumpRoutes(router *mux.Router) {
	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Debug("  Registered routes (%d total):", len(routes))

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		key := getRouteGroup(route.Path)
		groups[key] = append(groups[key], route)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		label := key
		if label == "" {
			label = "root"
		}
		logging.Debug("  [%s]", label)
		for _, route := range groups[key] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup buckets a route path by its first segment, with api
// routes further split by their sub-resource.
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}
	if parts[0] == "api" && len(parts) > 1 {
		sub := strings.SplitN(parts[1], "/", 2)
		return "api/" + sub[0]
	}
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  __               __   ____
   / __ )/ /__  ____  ____/ /  / __ )_________ _      __________  _____
  / __  / / _ \/ __ \/ __  /  / __  / ___/ __ \ | /| / / ___/ _ \/ ___/
 / /_/ / /  __/ / / / /_/ /  / /_/ / /  / /_/ / |/ |/ (__  )  __/ /
/_____/_/\___/_/ /_/\__,_/  /_____/_/   \____/|__/|__/____/\___/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info(rule)
	logging.Info("SYSTEM INFORMATION")
	logging.Info(rule)
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
}

// ensureDirectory creates the directory when missing; an existing
// non-directory at the path is an error.
func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("  Created %s directory: %s", name, path)
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

// formatBytesStartup formats bytes into a human-readable string
func formatBytesStartup(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// testWriteAccess proves a directory is writable by creating and
// removing a marker file.
func testWriteAccess(dir string) error {
	marker := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(marker, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(marker); err != nil {
		logging.Warn("failed to remove write test file %s: %v", marker, err)
	}
	return nil
}
