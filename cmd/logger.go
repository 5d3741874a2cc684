package cmd

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a slog logger backed by a zap production core. Call
// sync before exit to flush buffered entries.
func NewLogger(level string) (logger *slog.Logger, sync func(), err error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	handler := zapslog.NewHandler(zapLogger.Core(), zapslog.WithCaller(true))
	return slog.New(handler), func() { _ = zapLogger.Sync() }, nil
}
