package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storytime-api/internal/domain"
)

// AppLogger implements the domain.Logger interface on top of zap.
type AppLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a JSON logger writing to stdout at the given level.
// Unknown levels fall back to info.
func NewLogger(levelStr string) domain.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(parseLogLevel(levelStr))

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return NewFromZap(z)
}

// NewFromZap wraps an existing zap logger.
func NewFromZap(z *zap.Logger) *AppLogger {
	return &AppLogger{sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewNopLogger discards everything.
func NewNopLogger() domain.Logger {
	return NewFromZap(zap.NewNop())
}

// Info logs an info message
func (l *AppLogger) Info(msg string, fields ...interface{}) {
	l.sugar.Infow(msg, fields...)
}

// Error logs an error message
func (l *AppLogger) Error(msg string, err error, fields ...interface{}) {
	l.sugar.Errorw(msg, append([]interface{}{zap.Error(err)}, fields...)...)
}

// Debug logs a debug message
func (l *AppLogger) Debug(msg string, fields ...interface{}) {
	l.sugar.Debugw(msg, fields...)
}

// Warn logs a warning message
func (l *AppLogger) Warn(msg string, fields ...interface{}) {
	l.sugar.Warnw(msg, fields...)
}

// Sync flushes buffered entries.
func (l *AppLogger) Sync() error {
	return l.sugar.Sync()
}

// Sync flushes log if it is backed by zap; other loggers are left alone.
func Sync(log domain.Logger) {
	if s, ok := log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
