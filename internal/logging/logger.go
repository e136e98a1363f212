// Package logging provides categorized logging for boardsnap on top of zap.
// Each category is a named child of one root zap logger; categories can be
// switched off individually, in which case Get returns a no-op logger.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config, telemetry
	CategoryExport   Category = "export"   // Snapshot serialization
	CategoryExtract  Category = "extract"  // Element classification
	CategoryResolver Category = "resolver" // Tool identity lookups
	CategoryReplay   Category = "replay"   // Import automation
	CategoryLocator  Category = "locator"  // Control lookup cascades
	CategoryBrowser  Category = "browser"  // Browser sessions, CDP
	CategoryPanel    Category = "panel"    // Control panel keeper
	CategoryStore    Category = "store"    // Snapshot stores (file, S3)
	CategoryLedger   Category = "ledger"   // Run ledger
	CategoryServer   Category = "server"   // HTTP control API
)

// Options configures the root logger.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	Categories map[string]bool // per-category toggles; missing means enabled
}

// Logger is a category logger with printf-style methods.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	rootMu     sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool

	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
)

// New builds a zap logger from opts. JSON output uses zap's production
// config, console output its development config.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(opts.Format) {
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	if opts.Level != "" {
		lvl, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// Initialize builds the root logger from opts and installs it.
func Initialize(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Use(l, opts.Categories)
	Get(CategoryBoot).Debug("logging initialized (level=%s format=%s)", opts.Level, opts.Format)
	return nil
}

// Use installs l as the root logger. Category loggers obtained earlier are
// discarded.
func Use(l *zap.Logger, enabled map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	rootMu.Lock()
	root = l
	categories = enabled
	rootMu.Unlock()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// Root returns the root zap logger.
func Root() *zap.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Sync flushes the root logger.
func Sync() {
	_ = Root().Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	rootMu.RLock()
	defer rootMu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
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

	base := zap.NewNop()
	if IsCategoryEnabled(category) {
		base = Root().Named(string(category))
	}
	l := &Logger{category: category, sugar: base.Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Enabled reports whether messages at lvl would be written.
func (l *Logger) Enabled(lvl zapcore.Level) bool {
	return l.sugar.Desugar().Core().Enabled(lvl)
}

// WithContext returns a context logger that attaches the given key/value
// pairs to every message.
func (l *Logger) WithContext(ctx map[string]interface{}) *ContextLogger {
	kv := make([]interface{}, 0, len(ctx)*2)
	for k, v := range ctx {
		kv = append(kv, k, v)
	}
	return &ContextLogger{sugar: l.sugar.With(kv...)}
}

// ContextLogger provides structured logging with key-value context
type ContextLogger struct {
	sugar *zap.SugaredLogger
}

// With returns a copy carrying one more field.
func (c *ContextLogger) With(key string, value interface{}) *ContextLogger {
	return &ContextLogger{sugar: c.sugar.With(key, value)}
}

func (c *ContextLogger) Debug(format string, args ...interface{}) { c.sugar.Debugf(format, args...) }
func (c *ContextLogger) Info(format string, args ...interface{})  { c.sugar.Infof(format, args...) }
func (c *ContextLogger) Warn(format string, args ...interface{})  { c.sugar.Warnf(format, args...) }
func (c *ContextLogger) Error(format string, args ...interface{}) { c.sugar.Errorf(format, args...) }

// WithRun returns a context logger scoped to one export or import run.
func WithRun(category Category, runID string) *ContextLogger {
	return Get(category).WithContext(map[string]interface{}{"run": runID})
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// BootWarn logs a warning to the boot category
func BootWarn(format string, args ...interface{}) { Get(CategoryBoot).Warn(format, args...) }

// Export logs to the export category
func Export(format string, args ...interface{}) { Get(CategoryExport).Info(format, args...) }

// ExportDebug logs debug to the export category
func ExportDebug(format string, args ...interface{}) { Get(CategoryExport).Debug(format, args...) }

// ExportWarn logs a warning to the export category
func ExportWarn(format string, args ...interface{}) { Get(CategoryExport).Warn(format, args...) }

// Replay logs to the replay category
func Replay(format string, args ...interface{}) { Get(CategoryReplay).Info(format, args...) }

// ReplayDebug logs debug to the replay category
func ReplayDebug(format string, args ...interface{}) { Get(CategoryReplay).Debug(format, args...) }

// ReplayWarn logs a warning to the replay category
func ReplayWarn(format string, args ...interface{}) { Get(CategoryReplay).Warn(format, args...) }

// ReplayError logs an error to the replay category
func ReplayError(format string, args ...interface{}) { Get(CategoryReplay).Error(format, args...) }

// Browser logs to the browser category
func Browser(format string, args ...interface{}) { Get(CategoryBrowser).Info(format, args...) }

// BrowserDebug logs debug to the browser category
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }

// BrowserWarn logs a warning to the browser category
func BrowserWarn(format string, args ...interface{}) { Get(CategoryBrowser).Warn(format, args...) }

// BrowserError logs an error to the browser category
func BrowserError(format string, args ...interface{}) { Get(CategoryBrowser).Error(format, args...) }

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
