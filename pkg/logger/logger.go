// Package logger builds the structured zap loggers used throughout the
// store: one JSON-encoded production logger by default, or a friendlier
// console encoder during local development.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// devEnvVar switches the encoder to a human-readable console format.
// Set it to any non-empty value during local development.
const devEnvVar = "IGNITEMAP_DEV"

// New builds a *zap.SugaredLogger tagged with the given component name.
// Every log line carries a "component" field so multiplexed output from
// the engine, builder, and individual segments can be filtered apart.
func New(component string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if os.Getenv(devEnvVar) != "" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		// The configs above are static and always valid; a build failure
		// here means the process environment itself is broken (e.g. stdout
		// closed). Fall back to a no-op logger rather than panicking.
		log = zap.NewNop()
	}

	return log.Named(component).Sugar()
}

// NewSilent returns a logger that discards everything. Useful for tests,
// and used by engine.New when its Config carries no Logger.
func NewSilent() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
