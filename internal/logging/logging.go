// Package logging constructs the single zap.Logger every component
// constructor and cmd/ entrypoint shares, for structured, leveled logging
// in place of package-level stdlib log.Printf calls.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap.Logger at the given level
// ("debug", "info", "warn", "error"). An unrecognized level falls back
// to "info" rather than erroring, since logging setup must never block
// startup.
func New(level string) *zap.Logger {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// zap.NewProductionConfig().Build() only fails on a broken sink;
		// fall back to a no-op logger so a misconfigured output never
		// prevents startup. Nothing is logged in that case.
		fmt.Println("logging: falling back to no-op logger:", err)
		return zap.NewNop()
	}
	return logger
}
