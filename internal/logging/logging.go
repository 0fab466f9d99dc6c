package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

// Options configures the process-wide logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// FilePath, when set, sends log output to a rotated file instead of
	// stderr. Rotation is handled by lumberjack.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

var (
	logger   = logrus.StandardLogger()
	initOnce sync.Once
)

// Setup configures the shared logger. Safe to call once at startup; later
// calls are ignored. Without a Setup call the logger writes to stderr at
// the level named by the LOG_LEVEL environment variable (default info).
func Setup(opts Options) error {
	var err error
	initOnce.Do(func() {
		configure(opts.Level)

		var out io.Writer = os.Stderr
		if opts.FilePath != "" {
			if mkErr := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); mkErr != nil {
				err = fmt.Errorf("failed to create log directory: %w", mkErr)
				return
			}
			out = &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				Compress:   opts.Compress,
				LocalTime:  true,
			}
		}
		logger.SetOutput(out)
	})
	return err
}

// initDefault applies environment-derived defaults when Setup was never
// called (tests, the extraction CLI).
func initDefault() {
	initOnce.Do(func() {
		configure(os.Getenv("LOG_LEVEL"))
		logger.SetOutput(os.Stderr)
	})
}

func configure(level string) {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	logger.SetLevel(parseLevel(level).logrusLevel())
}

func parseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initDefault()
	switch logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return LevelDebug
	case logrus.WarnLevel:
		return LevelWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	initDefault()
	logger.Debugf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	initDefault()
	logger.Infof(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	initDefault()
	logger.Warnf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	initDefault()
	logger.Errorf(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	initDefault()
	logger.Fatalf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
