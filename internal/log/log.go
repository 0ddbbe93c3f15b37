// Package log wraps a process-wide zap logger.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	logger *zap.SugaredLogger
	base   *zap.Logger
)

// Init installs a development logger when debug is set and a production
// logger otherwise.
func Init(debug bool) error {
	var (
		zapLogger *zap.Logger
		err       error
	)
	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	mu.Lock()
	base = zapLogger
	logger = zapLogger.Sugar()
	mu.Unlock()
	return nil
}

// UseNop silences all output. Tests call it.
func UseNop() {
	mu.Lock()
	base = zap.NewNop()
	logger = base.Sugar()
	mu.Unlock()
}

// GetZapLogger returns the base logger, initializing a production logger on
// first use.
func GetZapLogger() *zap.Logger {
	GetSugaredLogger()
	return base
}

// GetSugaredLogger returns the sugared logger, initializing a production
// logger on first use.
func GetSugaredLogger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		base, _ = zap.NewProduction(zap.AddCallerSkip(1))
		logger = base.Sugar()
	}
	return logger
}

// Sync flushes buffered entries.
func Sync() {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}

func Debugf(template string, args ...any) { GetSugaredLogger().Debugf(template, args...) }

func Debugw(msg string, keysAndValues ...any) { GetSugaredLogger().Debugw(msg, keysAndValues...) }

func Infof(template string, args ...any) { GetSugaredLogger().Infof(template, args...) }

func Infow(msg string, keysAndValues ...any) { GetSugaredLogger().Infow(msg, keysAndValues...) }

func Warnf(template string, args ...any) { GetSugaredLogger().Warnf(template, args...) }

func Warnw(msg string, keysAndValues ...any) { GetSugaredLogger().Warnw(msg, keysAndValues...) }

func Errorf(template string, args ...any) { GetSugaredLogger().Errorf(template, args...) }

func Errorw(msg string, keysAndValues ...any) { GetSugaredLogger().Errorw(msg, keysAndValues...) }

// Fatalf logs and exits the process.
func Fatalf(template string, args ...any) { GetSugaredLogger().Fatalf(template, args...) }
