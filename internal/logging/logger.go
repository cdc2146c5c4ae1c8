// Package logging provides config-driven categorized file-based logging.
// Logs are written to separate files per category under the configured
// directory. Logging is gated by debug_mode - when false, every call is a
// silent no-op so production cycles pay nothing.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and wiring
	CategoryBudget     Category = "budget"     // Token counting and allocation
	CategoryHistory    Category = "history"    // Conversation thread manager
	CategoryMemory     Category = "memory"     // Semantic memory store
	CategoryProfile    Category = "profile"    // Entity behavior profiles
	CategoryAssembler  Category = "assembler"  // Context assembly
	CategoryStore      Category = "store"      // SQLite operations
	CategoryEmbedding  Category = "embedding"  // Embedding engine
	CategoryGeneration Category = "generation" // Ollama generation calls
	CategoryPipeline   Category = "pipeline"   // Scheduled ingest cycles
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Settings mirrors the relevant parts of config.LoggingConfig to avoid a
// circular import between config and logging.
type Settings struct {
	DebugMode  bool
	Dir        string
	Level      string
	Categories map[string]bool
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	mu       sync.Mutex
	logger   *log.Logger
	file     *os.File
	closed   bool
}

var (
	loggers    = make(map[Category]*Logger)
	loggersMu  sync.RWMutex
	settings   Settings
	settingsMu sync.RWMutex

	// read on every log call, written on config reload
	logLevel atomic.Int32
)

// Initialize configures the logging directory and level. Should be called
// once at startup; calling it again (e.g. after a config reload) replaces
// the settings and reopens category files lazily.
func Initialize(s Settings) error {
	settingsMu.Lock()
	settings = s
	settingsMu.Unlock()

	switch s.Level {
	case "debug":
		logLevel.Store(LevelDebug)
	case "warn", "warning":
		logLevel.Store(LevelWarn)
	case "error":
		logLevel.Store(LevelError)
	default:
		logLevel.Store(LevelInfo)
	}

	CloseAll()

	if !s.DebugMode {
		return nil // Silent no-op in production mode
	}
	if s.Dir == "" {
		return fmt.Errorf("logging dir required when debug_mode is enabled")
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== arklore logging initialized ===")
	boot.Info("Logs directory: %s", s.Dir)
	boot.Info("Log level: %s", s.Level)
	return nil
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	settingsMu.RLock()
	defer settingsMu.RUnlock()

	if !settings.DebugMode {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, exists := settings.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
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

	// Date prefix keeps rotation trivial.
	settingsMu.RLock()
	dir := settings.Dir
	settingsMu.RUnlock()
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
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

// output writes one line unless this logger has already been closed by a
// reload or shutdown.
func (l *Logger) output(prefix, format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.logger.Printf(prefix+format, args...)
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if logLevel.Load() > LevelDebug {
		return
	}
	l.output("[DEBUG] ", format, args...)
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if logLevel.Load() > LevelInfo {
		return
	}
	l.output("[INFO] ", format, args...)
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if logLevel.Load() > LevelWarn {
		return
	}
	l.output("[WARN] ", format, args...)
}

// Error logs an error message (always logged if the logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	l.output("[ERROR] ", format, args...)
}

// CloseAll closes all open log files (call at shutdown or reload). Loggers
// still held by callers become silent no-ops rather than writing to a
// closed file.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		l.mu.Lock()
		l.closed = true
		if l.file != nil {
			l.file.Close()
		}
		l.mu.Unlock()
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - quick logging without getting a logger first.
// These are no-ops if the category is disabled.
// =============================================================================

// Budget logs to the budget category.
func Budget(format string, args ...interface{}) { Get(CategoryBudget).Info(format, args...) }

// BudgetDebug logs debug to the budget category.
func BudgetDebug(format string, args ...interface{}) { Get(CategoryBudget).Debug(format, args...) }

// History logs to the history category.
func History(format string, args ...interface{}) { Get(CategoryHistory).Info(format, args...) }

// HistoryDebug logs debug to the history category.
func HistoryDebug(format string, args ...interface{}) { Get(CategoryHistory).Debug(format, args...) }

// Memory logs to the memory category.
func Memory(format string, args ...interface{}) { Get(CategoryMemory).Info(format, args...) }

// MemoryDebug logs debug to the memory category.
func MemoryDebug(format string, args ...interface{}) { Get(CategoryMemory).Debug(format, args...) }

// Profile logs to the profile category.
func Profile(format string, args ...interface{}) { Get(CategoryProfile).Info(format, args...) }

// ProfileDebug logs debug to the profile category.
func ProfileDebug(format string, args ...interface{}) { Get(CategoryProfile).Debug(format, args...) }

// Assembler logs to the assembler category.
func Assembler(format string, args ...interface{}) { Get(CategoryAssembler).Info(format, args...) }

// AssemblerDebug logs debug to the assembler category.
func AssemblerDebug(format string, args ...interface{}) {
	Get(CategoryAssembler).Debug(format, args...)
}

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Embedding logs to the embedding category.
func Embedding(format string, args ...interface{}) { Get(CategoryEmbedding).Info(format, args...) }

// EmbeddingDebug logs debug to the embedding category.
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}

// Generation logs to the generation category.
func Generation(format string, args ...interface{}) { Get(CategoryGeneration).Info(format, args...) }

// Pipeline logs to the pipeline category.
func Pipeline(format string, args ...interface{}) { Get(CategoryPipeline).Info(format, args...) }

// PipelineDebug logs debug to the pipeline category.
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debug(format, args...)
}

// =============================================================================
// PERFORMANCE TIMING
// =============================================================================

// Timer tracks the duration of an operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds the threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
