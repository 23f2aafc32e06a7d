package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initLogger installs the process-wide zap logger. Call once from main,
// before any service is constructed; everything else logs via zap.S().
// verbose lowers the level to Debug so ignored tray/menu events show up.
func initLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than aborting the app over
		// logging config.
		logger = zap.NewNop()
	}
	zap.ReplaceGlobals(logger)
	return logger
}
