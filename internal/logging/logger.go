// Package logging provides config-driven categorized file-based logging for pharmadoc.
// Logs are written to <workspace>/logs/ with separate files per category.
// Logging is controlled by debug_mode in <workspace>/logging.yaml - when false, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup/initialization
	CategoryClassify   Category = "classify"   // Document classification
	CategoryExtract    Category = "extract"    // Consensus extraction passes
	CategoryOracle     Category = "oracle"     // Oracle API calls
	CategoryCache      Category = "cache"      // Result cache operations
	CategorySanitize   Category = "sanitize"   // Text/field sanitization
	CategoryValidate   Category = "validate"   // Structural validation
	CategoryRegulatory Category = "regulatory" // Regulatory decision engine
	CategoryPipeline   Category = "pipeline"   // Document analysis orchestration
)

// loggingConfig is loaded from the workspace yaml; kept local to avoid a
// circular import with internal/config.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
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
	logsDir   string
	workspace string
	config    loggingConfig
	configMu  sync.RWMutex
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	// Only create logs directory if debug mode is enabled.
	if !config.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== pharmadoc logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", config.Level)

	return nil
}

// loadConfig reads the logging config from <workspace>/logging.yaml.
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, "logging.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging).
			config.DebugMode = false
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse logging config: %w", err)
	}

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
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
	if logsDir == "" {
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
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

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

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first.
// These are no-ops if the category is disabled.
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Classify logs to the classify category.
func Classify(format string, args ...interface{}) {
	Get(CategoryClassify).Info(format, args...)
}

// ClassifyDebug logs debug to the classify category.
func ClassifyDebug(format string, args ...interface{}) {
	Get(CategoryClassify).Debug(format, args...)
}

// ClassifyWarn logs warning to the classify category.
func ClassifyWarn(format string, args ...interface{}) {
	Get(CategoryClassify).Warn(format, args...)
}

// Extract logs to the extract category.
func Extract(format string, args ...interface{}) {
	Get(CategoryExtract).Info(format, args...)
}

// ExtractDebug logs debug to the extract category.
func ExtractDebug(format string, args ...interface{}) {
	Get(CategoryExtract).Debug(format, args...)
}

// ExtractWarn logs warning to the extract category.
func ExtractWarn(format string, args ...interface{}) {
	Get(CategoryExtract).Warn(format, args...)
}

// ExtractError logs error to the extract category.
func ExtractError(format string, args ...interface{}) {
	Get(CategoryExtract).Error(format, args...)
}

// Oracle logs to the oracle category.
func Oracle(format string, args ...interface{}) {
	Get(CategoryOracle).Info(format, args...)
}

// OracleDebug logs debug to the oracle category.
func OracleDebug(format string, args ...interface{}) {
	Get(CategoryOracle).Debug(format, args...)
}

// OracleError logs error to the oracle category.
func OracleError(format string, args ...interface{}) {
	Get(CategoryOracle).Error(format, args...)
}

// Cache logs to the cache category.
func Cache(format string, args ...interface{}) {
	Get(CategoryCache).Info(format, args...)
}

// CacheDebug logs debug to the cache category.
func CacheDebug(format string, args ...interface{}) {
	Get(CategoryCache).Debug(format, args...)
}

// CacheWarn logs warning to the cache category.
func CacheWarn(format string, args ...interface{}) {
	Get(CategoryCache).Warn(format, args...)
}

// Sanitize logs to the sanitize category.
func Sanitize(format string, args ...interface{}) {
	Get(CategorySanitize).Info(format, args...)
}

// SanitizeDebug logs debug to the sanitize category.
func SanitizeDebug(format string, args ...interface{}) {
	Get(CategorySanitize).Debug(format, args...)
}

// Validate logs to the validate category.
func Validate(format string, args ...interface{}) {
	Get(CategoryValidate).Info(format, args...)
}

// ValidateDebug logs debug to the validate category.
func ValidateDebug(format string, args ...interface{}) {
	Get(CategoryValidate).Debug(format, args...)
}

// Regulatory logs to the regulatory category.
func Regulatory(format string, args ...interface{}) {
	Get(CategoryRegulatory).Info(format, args...)
}

// RegulatoryDebug logs debug to the regulatory category.
func RegulatoryDebug(format string, args ...interface{}) {
	Get(CategoryRegulatory).Debug(format, args...)
}

// Pipeline logs to the pipeline category.
func Pipeline(format string, args ...interface{}) {
	Get(CategoryPipeline).Info(format, args...)
}

// PipelineDebug logs debug to the pipeline category.
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debug(format, args...)
}

// PipelineWarn logs warning to the pipeline category.
func PipelineWarn(format string, args ...interface{}) {
	Get(CategoryPipeline).Warn(format, args...)
}

// PipelineError logs error to the pipeline category.
func PipelineError(format string, args ...interface{}) {
	Get(CategoryPipeline).Error(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging.
// =============================================================================

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}
