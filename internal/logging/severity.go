package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below debug. zap has no trace level of its own.
const TraceLevel = zapcore.DebugLevel - 1

// Cloud Logging severity names.
const (
	SeverityDebug    = "DEBUG"
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// Severity maps a zap level onto the Cloud Logging severity vocabulary.
// Levels outside trace/debug/info/warn/error/fatal fall back to INFO.
func Severity(level zapcore.Level) string {
	switch level {
	case TraceLevel, zapcore.DebugLevel:
		return SeverityDebug
	case zapcore.InfoLevel:
		return SeverityInfo
	case zapcore.WarnLevel:
		return SeverityWarning
	case zapcore.ErrorLevel:
		return SeverityError
	case zapcore.FatalLevel:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// ParseLevel accepts zap level names plus "trace".
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.EqualFold(strings.TrimSpace(s), "trace") {
		return TraceLevel, nil
	}
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// Trace logs msg at TraceLevel.
func Trace(logger *zap.Logger, msg string, fields ...zap.Field) {
	if ce := logger.Check(TraceLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}
