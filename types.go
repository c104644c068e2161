package users

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across the package. Arguments are
// key/value pairs.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// ResolveLogger picks the logger for a component: the provider scoped logger
// first, then the explicit logger, then the package default.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return l
		}
	}
	if logger != nil {
		return logger
	}
	return defaultLogger()
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a Logger backed by zap. format is "json" or "text",
// level one of debug, info, warn, error, fatal.
func NewZapLogger(format, level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.CallerKey = ""
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if strings.EqualFold(format, "text") || strings.EqualFold(format, "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &zapLogger{sugar: log.Sugar()}, nil
}

// NewLoggerFromZap wraps an existing zap logger.
func NewLoggerFromZap(log *zap.Logger) Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &zapLogger{sugar: log.Sugar()}
}

// NopLogger discards everything.
func NopLogger() Logger {
	return NewLoggerFromZap(zap.NewNop())
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func (l *zapLogger) Trace(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *zapLogger) Fatal(msg string, args ...any) { l.sugar.Fatalw(msg, args...) }

func (l *zapLogger) WithContext(context.Context) Logger {
	return l
}

// Named returns a child logger; it makes zapLogger usable as a provider root.
func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{sugar: l.sugar.Named(name)}
}

// ZapProvider hands out loggers named after the requesting component.
type ZapProvider struct {
	base Logger
}

// NewZapProvider wraps base, which should come from NewZapLogger or
// NewLoggerFromZap.
func NewZapProvider(base Logger) *ZapProvider {
	return &ZapProvider{base: base}
}

func (p *ZapProvider) GetLogger(name string) Logger {
	if p == nil || p.base == nil {
		return nil
	}
	if named, ok := p.base.(interface{ Named(string) Logger }); ok && name != "" {
		return named.Named(name)
	}
	return p.base
}

var (
	fallbackOnce   sync.Once
	fallbackLogger Logger
)

func defaultLogger() Logger {
	fallbackOnce.Do(func() {
		l, err := NewZapLogger("text", "warn")
		if err != nil {
			l = NopLogger()
		}
		fallbackLogger = l
	})
	return fallbackLogger
}
