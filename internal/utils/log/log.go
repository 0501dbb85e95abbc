package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = mustDefault()
)

func mustDefault() *zap.Logger {
	l, err := build("info", false)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func build(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build(zap.AddCallerSkip(1))
}

// Init replaces the process logger. Level is one of debug, info, warn, error.
func Init(level string, development bool) error {
	l, err := build(level, development)
	if err != nil {
		return err
	}

	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()

	_ = old.Sync()
	return nil
}

// L returns the current logger without the package caller skip.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.WithOptions(zap.AddCallerSkip(-1))
}

func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Sync()
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, fields ...zap.Field) { current().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { current().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { current().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { current().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) { current().Fatal(msg, fields...) }
