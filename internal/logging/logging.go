// Package logging builds the process-wide slog handler.
//
// Records are encoded by zap, reached through logr so the same sink can be
// handed to libraries that expect a logr.Logger. Every record carrying an
// active span gets trace_id and span_id attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	level   slog.Level
	writer  io.Writer
	console bool
}

// Option configures the handler
type Option func(*options)

// WithLevel sets the minimum level
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithWriter sets the destination, stderr by default
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithConsole switches from JSON to human-readable output
func WithConsole(console bool) Option {
	return func(o *options) {
		o.console = console
	}
}

// NewHandler creates a zap-backed slog handler
func NewHandler(opts ...Option) slog.Handler {
	o := &options{level: slog.LevelInfo, writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = encodeLevel

	var encoder zapcore.Encoder
	if o.console {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	// logr reports warn and error as verbosity 0 when asking whether a level
	// is enabled, so zap never filters above info and the level check happens
	// in the slog handler instead
	zapLevel := min(toZapLevel(o.level), zapcore.InfoLevel)
	core := zapcore.NewCore(encoder, zapcore.AddSync(o.writer), zap.NewAtomicLevelAt(zapLevel))
	zl := zap.New(core)

	return &traceHandler{
		Handler: logr.ToSlogHandler(zapr.NewLogger(zl)),
		level:   o.level,
	}
}

// Setup installs a new handler as the slog default and returns the logger
func Setup(opts ...Option) *slog.Logger {
	logger := slog.New(NewHandler(opts...))
	slog.SetDefault(logger)
	return logger
}

// toZapLevel maps slog levels onto zap. Levels below Info become negative zap
// levels, which is how zapr represents logr verbosity.
func toZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.Level(level)
	}
}

// encodeLevel prints every verbosity below info as "debug"
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l < zapcore.DebugLevel {
		l = zapcore.DebugLevel
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// ParseLevel converts a level name. Unknown names return false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// LevelFromEnv reads <prefix>_LOG_LEVEL, falling back to LOG_LEVEL.
// Invalid or missing values mean info.
func LevelFromEnv(prefix string) slog.Level {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, ok := ParseLevel(levelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

// traceHandler filters by level and adds the active span's identifiers to
// every record
type traceHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.Handler.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}
