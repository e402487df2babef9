// Package logger provides a global, Sugared Zap logger with optional
// OpenTelemetry integration. It writes warn-and-above and debug-and-above
// append-only JSON log files plus a pretty console stream to stderr, and
// treats every call as fire-and-forget — logging never participates in the
// core's correctness argument.
package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pingpongbot/pongbot/internal/pkg/telemetry"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// logger is the global SugaredLogger instance. It starts as a no-op
	// logger, so calls made before Init are discarded rather than panicking,
	// and is replaced once by Init.
	logger = zap.NewNop().Sugar()

	// initOnce ensures the logger is only configured a single time.
	initOnce sync.Once
)

// config holds configuration options for the logger.
type config struct {
	level    string // the minimum log level for the debug log and stderr stream
	dataPath string // directory the warn.log and debug.log files are written under
}

// Option configures the logger before initialization.
type Option func(*config)

// WithLevel sets the minimum log level for the debug log file and the
// stderr stream. Example levels: "debug", "info", "warn", "error".
func WithLevel(l string) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithDataPath sets the directory warn.log and debug.log are written
// under. Defaults to the current working directory.
func WithDataPath(path string) Option {
	return func(c *config) {
		c.dataPath = path
	}
}

// Init configures the global logger. By default it logs JSON to
// "${DATA_PATH}/warn.log" (warn and above), JSON to
// "${DATA_PATH}/debug.log" (debug and above), and a console-encoded stream
// to stderr (debug and above). If an OpenTelemetry LoggerProvider is
// registered via telemetry.LoggerProvider(), an OTEL bridge core is added
// to forward logs to the telemetry backend as well. Calling Init more than
// once has no effect after the first successful initialization.
func Init(opts ...Option) error {
	cfg := config{level: "debug", dataPath: "."}
	for _, opt := range opts {
		opt(&cfg)
	}

	level, err := zapcore.ParseLevel(cfg.level)
	if err != nil {
		return err
	}

	warnFile, err := openLogFile(cfg.dataPath, "warn.log")
	if err != nil {
		return err
	}

	debugFile, err := openLogFile(cfg.dataPath, "debug.log")
	if err != nil {
		return err
	}

	initOnce.Do(func() {
		encoderCfg := zap.NewProductionEncoderConfig()

		cores := []zapcore.Core{
			zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(warnFile), zap.WarnLevel),
			zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(debugFile), level),
			zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(os.Stderr), level),
		}

		if lp := telemetry.LoggerProvider(); lp != nil {
			cores = append(cores, otelzap.NewCore("", otelzap.WithLoggerProvider(lp)))
		}

		logger = zap.New(zapcore.NewTee(cores...)).Sugar()
	})

	return nil
}

func openLogFile(dataPath, name string) (*os.File, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, err
	}

	return os.OpenFile(filepath.Join(dataPath, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Sync flushes any buffered log entries. It should be called on application
// shutdown to ensure all logs are written out.
func Sync() error {
	return logger.Sync()
}

// Debug logs a debug-level message with optional key/value context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Debugw(msg, keysAndValues...)
}

// Info logs an info-level message with optional key/value context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Infow(msg, keysAndValues...)
}

// Warn logs a warn-level message with optional key/value context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Warnw(msg, keysAndValues...)
}

// Error logs an error-level message with optional key/value context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal-level message (and then exits) with optional key/value context.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Fatalw(msg, keysAndValues...)
}
