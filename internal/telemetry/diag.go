package telemetry

import (
	"os"
	"strings"

	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/tasklist/internal/logging"
)

// diagLevel converts an OTEL_LOG_LEVEL value into the zap level that lets the matching
// logr verbosity through. The OpenTelemetry global logger emits warnings at V(1), info
// at V(4) and debug at V(8); zapr maps V(n) onto zap level -n.
func diagLevel(value string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return zapcore.InvalidLevel, false
	case "error":
		return zapcore.ErrorLevel, true
	case "warn", "warning":
		return zapcore.Level(-1), true
	case "debug", "verbose", "all":
		return zapcore.Level(-8), true
	default:
		return zapcore.Level(-4), true
	}
}

// newDiagLogger builds the logger OpenTelemetry reports its own problems to. It writes
// to stderr and shares nothing with the application logger.
func newDiagLogger(value string) *zap.Logger {
	level, ok := diagLevel(value)
	if !ok {
		return zap.NewNop()
	}
	core := logging.NewCore(zapcore.Lock(os.Stderr), level)
	return zap.New(core).Named("otel")
}

// installDiagnostics routes OpenTelemetry internal logs and errors to diag.
func installDiagnostics(diag *zap.Logger) {
	otel.SetLogger(zapr.NewLogger(diag))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		diag.Error("opentelemetry error", zap.Error(err))
	}))
}
