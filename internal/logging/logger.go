// Package logging provides categorized structured logging for the reasoning core.
// Each subsystem logs through its own category; categories are backed by a shared
// zap logger and can be switched off individually.
// Logging is a no-op until Initialize is called.
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
	CategoryBoot        Category = "boot"        // Startup, config loading
	CategoryIRI         Category = "iri"         // IRI interning
	CategoryOntology    Category = "ontology"    // Ontology store mutations
	CategoryArena       Category = "arena"       // Arena checkpoints and rollbacks
	CategoryTableaux    Category = "tableaux"    // Tableau sessions
	CategoryClassify    Category = "classify"    // Classification runs
	CategoryCache       Category = "cache"       // Cache hits, misses, invalidation
	CategoryQuery       Category = "query"       // Query planning and execution
	CategoryRules       Category = "rules"       // Datalog materialization
	CategoryReasoner    Category = "reasoner"    // Facade operations
	CategoryPerformance Category = "performance" // Slow operations
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json or console
	DebugMode  bool            // enables debug level regardless of Level
	Categories map[string]bool // per-category switches; missing means enabled
}

// Logger is a category-scoped logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the shared zap logger from opts.
func Initialize(opts Options) error {
	var cfg zap.Config
	if strings.EqualFold(opts.Format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.DebugMode {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	SetLogger(logger, opts.Categories)
	return nil
}

// SetLogger installs an already-built zap logger. Tests use this with an
// observer core.
func SetLogger(logger *zap.Logger, cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	base = logger
	categories = cats
	loggers = make(map[Category]*Logger)
}

// Reset returns logging to the no-op state.
func Reset() {
	SetLogger(nil, nil)
}

// Base returns the shared zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
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
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    base.With(zap.String("category", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries of the shared logger.
func Sync() error {
	return Base().Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})          { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{})     { Get(CategoryBoot).Debug(format, args...) }
func Ontology(format string, args ...interface{})      { Get(CategoryOntology).Info(format, args...) }
func OntologyDebug(format string, args ...interface{}) { Get(CategoryOntology).Debug(format, args...) }
func ArenaDebug(format string, args ...interface{})    { Get(CategoryArena).Debug(format, args...) }
func Tableaux(format string, args ...interface{})      { Get(CategoryTableaux).Info(format, args...) }
func TableauxDebug(format string, args ...interface{}) { Get(CategoryTableaux).Debug(format, args...) }
func Classify(format string, args ...interface{})      { Get(CategoryClassify).Info(format, args...) }
func ClassifyDebug(format string, args ...interface{}) { Get(CategoryClassify).Debug(format, args...) }
func CacheDebug(format string, args ...interface{})    { Get(CategoryCache).Debug(format, args...) }
func Query(format string, args ...interface{})         { Get(CategoryQuery).Info(format, args...) }
func QueryDebug(format string, args ...interface{})    { Get(CategoryQuery).Debug(format, args...) }
func Rules(format string, args ...interface{})         { Get(CategoryRules).Info(format, args...) }
func RulesDebug(format string, args ...interface{})    { Get(CategoryRules).Debug(format, args...) }
func Reasoner(format string, args ...interface{})      { Get(CategoryReasoner).Info(format, args...) }
func ReasonerDebug(format string, args ...interface{}) { Get(CategoryReasoner).Debug(format, args...) }

// =============================================================================
// TIMERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning under the performance category if the
// duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(CategoryPerformance).Warn("%s/%s took %v (threshold: %v)", t.category, t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
