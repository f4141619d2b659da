// Package logger is the structured logger shared by every package: zap
// behind a small interface, with field constructors so callers never import
// zap themselves.
package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field.
type Field = zap.Field

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})

	// With returns a child logger that always carries the given fields,
	// e.g. the run_id of a run or the name of a search.
	With(fields ...Field) Logger

	Sync() error
}

type zapLogger struct {
	z *zap.Logger
	s *zap.SugaredLogger
}

// New builds a console logger with colours when pretty is set, JSON lines
// otherwise. Unknown levels fall back to info. Every line carries app=staywatch.
func New(level string, pretty bool) Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	z, err := cfg.Build(
		zap.AddStacktrace(zapcore.FatalLevel),
		zap.Fields(zap.String("app", "staywatch")),
	)
	if err != nil {
		panic(err)
	}
	return wrap(z)
}

// NewNop discards everything.
func NewNop() Logger { return wrap(zap.NewNop()) }

func wrap(z *zap.Logger) Logger { return &zapLogger{z: z, s: z.Sugar()} }

// ParseLevel maps "debug", "INFO", "warn"... to a zap level; anything else is info.
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) Debugf(t string, args ...interface{}) { l.s.Debugf(t, args...) }
func (l *zapLogger) Infof(t string, args ...interface{})  { l.s.Infof(t, args...) }
func (l *zapLogger) Warnf(t string, args ...interface{})  { l.s.Warnf(t, args...) }
func (l *zapLogger) Errorf(t string, args ...interface{}) { l.s.Errorf(t, args...) }

func (l *zapLogger) With(fields ...Field) Logger { return wrap(l.z.With(fields...)) }

func (l *zapLogger) Sync() error { return l.z.Sync() }

func String(key, val string) Field                 { return zap.String(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
