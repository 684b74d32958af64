// Package logging builds the process logger.
package logging

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _zapLogger *zap.SugaredLogger

// Initialize builds the logger and stores it for Logger. datetime prefixes
// entries with an ISO8601 timestamp, debugMode lowers the level to DEBUG and
// enables stack traces, colors colours the level names.
func Initialize(datetime bool, debugMode bool, colors bool) (*zap.SugaredLogger, error) {
	zapConfig := zap.NewProductionConfig()

	// Human-readable messages instead of JSON
	zapConfig.Encoding = "console"
	zapConfig.DisableStacktrace = !debugMode

	if datetime {
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig.EncoderConfig.EncodeTime = func(time.Time, zapcore.PrimitiveArrayEncoder) {}
	}

	if debugMode {
		zapConfig.Level.SetLevel(zapcore.DebugLevel)
	} else {
		zapConfig.Level.SetLevel(zapcore.InfoLevel)
	}

	if colors {
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	unsugared, err := zapConfig.Build()
	if err != nil {
		return nil, errors.Wrap(err, "error while constructing a logger")
	}

	_zapLogger = unsugared.Sugar()
	return _zapLogger, nil
}

// Logger returns the logger built by Initialize, or a no-op logger when
// Initialize has not been called.
func Logger() *zap.SugaredLogger {
	if _zapLogger == nil {
		return zap.NewNop().Sugar()
	}
	return _zapLogger
}
