// Package logging provides categorized logging for tasknerd.
// Every subsystem logs through its own category so output can be filtered
// per component; the sink is a single zap logger configured at startup.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup, config, wiring
	CategoryConfig       Category = "config"       // Config load and hot reload
	CategorySession      Category = "session"      // Context tracker lifecycle
	CategoryPerception   Category = "perception"   // Utterance -> intent extraction
	CategoryResolver     Category = "resolver"     // Reference resolution
	CategoryPlanner      Category = "planner"      // Operation planning
	CategoryExecutor     Category = "executor"     // Plan execution
	CategoryArticulation Category = "articulation" // Reply synthesis
	CategoryStore        Category = "store"        // SQLite store
	CategoryServer       Category = "server"       // HTTP / websocket transport
	CategoryAPI          Category = "api"          // LLM API calls
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // optional extra output path
	Categories map[string]bool // empty means every category is enabled
}

// Logger is a category-scoped logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the process logger. Safe to call again; later calls
// replace the sink and drop cached category loggers.
func Initialize(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	level.SetLevel(lvl)
	cfg.Level = level

	cfg.OutputPaths = []string{"stderr"}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	replace(logger, opts.Categories)
	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s file=%q", lvl, cfg.Encoding, opts.File)
	return logger, nil
}

// UseLogger installs an already-built zap logger (tests, embedding).
func UseLogger(logger *zap.Logger, cats map[string]bool) {
	replace(logger, cats)
}

func replace(logger *zap.Logger, cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	base = logger
	categories = cats
	loggers = make(map[Category]*Logger)
}

// ParseLevel maps a config level string onto a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel changes the level of every logger at runtime.
func SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level returns the active level.
func Level() zapcore.Level {
	return level.Level()
}

// Base returns the underlying zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = Base().Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if len(categories) == 0 {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
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
		sugar:    base.Sugar().With("category", string(category)),
	}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
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

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// Session logs to the session category
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs debug to the session category
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// Perception logs to the perception category
func Perception(format string, args ...interface{}) { Get(CategoryPerception).Info(format, args...) }

// PerceptionDebug logs debug to the perception category
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}

// PerceptionWarn logs a warning to the perception category
func PerceptionWarn(format string, args ...interface{}) {
	Get(CategoryPerception).Warn(format, args...)
}

// PerceptionError logs an error to the perception category
func PerceptionError(format string, args ...interface{}) {
	Get(CategoryPerception).Error(format, args...)
}

// Resolver logs to the resolver category
func Resolver(format string, args ...interface{}) { Get(CategoryResolver).Info(format, args...) }

// ResolverDebug logs debug to the resolver category
func ResolverDebug(format string, args ...interface{}) { Get(CategoryResolver).Debug(format, args...) }

// Planner logs to the planner category
func Planner(format string, args ...interface{}) { Get(CategoryPlanner).Info(format, args...) }

// PlannerDebug logs debug to the planner category
func PlannerDebug(format string, args ...interface{}) { Get(CategoryPlanner).Debug(format, args...) }

// Executor logs to the executor category
func Executor(format string, args ...interface{}) { Get(CategoryExecutor).Info(format, args...) }

// ExecutorDebug logs debug to the executor category
func ExecutorDebug(format string, args ...interface{}) { Get(CategoryExecutor).Debug(format, args...) }

// Articulation logs to the articulation category
func Articulation(format string, args ...interface{}) {
	Get(CategoryArticulation).Info(format, args...)
}

// ArticulationDebug logs debug to the articulation category
func ArticulationDebug(format string, args ...interface{}) {
	Get(CategoryArticulation).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Server logs to the server category
func Server(format string, args ...interface{}) { Get(CategoryServer).Info(format, args...) }

// ServerDebug logs debug to the server category
func ServerDebug(format string, args ...interface{}) { Get(CategoryServer).Debug(format, args...) }

// API logs to the api category
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// =============================================================================
// TIMERS
// =============================================================================

// Timer measures one operation.
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
