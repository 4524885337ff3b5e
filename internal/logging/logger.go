// Package logging provides config-driven categorized file-based logging.
// Logs are written to the configured directory with separate files per
// category. When debug mode is off, every logger is a silent no-op.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup and configuration
	CategoryOrchestrator Category = "orchestrator" // Step sequencing and state machine
	CategoryBrowser      Category = "browser"      // Page driver, DOM capture
	CategoryOracle       Category = "oracle"       // LLM calls and parsing
	CategoryCache        Category = "cache"        // Decision cache hits/misses
	CategoryExecutor     Category = "executor"     // Instruction execution
	CategoryRunner       Category = "runner"       // Artifact compile+run
	CategoryRepair       Category = "repair"       // Repair loop attempts
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls logger behavior; supplied by the config package to
// avoid a circular import.
type Options struct {
	DebugMode  bool
	Level      string
	Dir        string
	Categories map[string]bool
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	opts      Options
	optsMu    sync.RWMutex
	logLevel  int
)

// Initialize sets up the logging directory. Call once at startup.
func Initialize(o Options) error {
	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	optsMu.Unlock()

	if !o.DebugMode {
		return nil // Silent no-op in production mode
	}
	if o.Dir == "" {
		return fmt.Errorf("log directory required in debug mode")
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== pilot logging initialized ===")
	boot.Info("Logs directory: %s", o.Dir)
	boot.Info("Log level: %s", o.Level)
	return nil
}

// IsCategoryEnabled returns whether a category is enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category. Returns a
// no-op logger when debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	optsMu.RLock()
	dir := opts.Dir
	optsMu.RUnlock()

	// Date prefix keeps rotation a matter of deleting old files.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions; no-ops when the category is disabled.

func Boot(format string, args ...interface{})         { Get(CategoryBoot).Info(format, args...) }
func Orchestrator(format string, args ...interface{}) { Get(CategoryOrchestrator).Info(format, args...) }
func OrchestratorDebug(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Debug(format, args...)
}
func OrchestratorError(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Error(format, args...)
}
func Browser(format string, args ...interface{})      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserError(format string, args ...interface{}) { Get(CategoryBrowser).Error(format, args...) }
func Oracle(format string, args ...interface{})       { Get(CategoryOracle).Info(format, args...) }
func OracleDebug(format string, args ...interface{})  { Get(CategoryOracle).Debug(format, args...) }
func OracleError(format string, args ...interface{})  { Get(CategoryOracle).Error(format, args...) }
func Cache(format string, args ...interface{})        { Get(CategoryCache).Info(format, args...) }
func CacheDebug(format string, args ...interface{})   { Get(CategoryCache).Debug(format, args...) }
func CacheWarn(format string, args ...interface{})    { Get(CategoryCache).Warn(format, args...) }
func Executor(format string, args ...interface{})     { Get(CategoryExecutor).Info(format, args...) }
func ExecutorError(format string, args ...interface{}) {
	Get(CategoryExecutor).Error(format, args...)
}
func Runner(format string, args ...interface{})      { Get(CategoryRunner).Info(format, args...) }
func RunnerDebug(format string, args ...interface{}) { Get(CategoryRunner).Debug(format, args...) }
func Repair(format string, args ...interface{})      { Get(CategoryRepair).Info(format, args...) }
func RepairWarn(format string, args ...interface{})  { Get(CategoryRepair).Warn(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
