// Package logger holds the process-wide zap logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// configFor returns the zap configuration for an APP_ENV value.
func configFor(env string) zap.Config {
	switch env {
	case "production":
		return zap.NewProductionConfig()
	case "test":
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		return cfg
	default:
		return zap.NewDevelopmentConfig()
	}
}

// Init builds the global logger for env. Only the first call has an effect.
func Init(env string) {
	once.Do(func() {
		base, err := configFor(env).Build()
		if err != nil {
			base = zap.NewNop()
		}
		sugar = base.Sugar()
	})
}

// Get returns the global logger, building a development one on first use.
func Get() *zap.SugaredLogger {
	Init("development")
	return sugar
}

// Named returns a child of the global logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
