package logtrace

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// ParseLevel maps a textual level to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return l, errors.Wrapf(err, "invalid log level %q", level)
	}
	return l, nil
}

// Setup installs a console logger writing to w at the given level.
// Until Setup is called every log call is discarded.
func Setup(level string, w io.Writer) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), l)

	mu.Lock()
	logger = zap.New(core)
	mu.Unlock()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = current().Sync()
}

// Sugar exposes the underlying logger in printf style, for libraries
// that expect Debugf/Warnf/Errorf.
func Sugar() *zap.SugaredLogger {
	return current().Sugar()
}

func Debug(ctx context.Context, msg string, fields Fields) {
	write(ctx, zapcore.DebugLevel, msg, fields)
}

func Info(ctx context.Context, msg string, fields Fields) {
	write(ctx, zapcore.InfoLevel, msg, fields)
}

func Warn(ctx context.Context, msg string, fields Fields) {
	write(ctx, zapcore.WarnLevel, msg, fields)
}

func Error(ctx context.Context, msg string, fields Fields) {
	write(ctx, zapcore.ErrorLevel, msg, fields)
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func write(ctx context.Context, level zapcore.Level, msg string, fields Fields) {
	l := current()
	ce := l.Check(level, msg)
	if ce == nil {
		return
	}
	ce.Write(zapFields(ctx, fields)...)
}

// zapFields converts Fields in key order so console lines are stable.
func zapFields(ctx context.Context, fields Fields) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.String(k, err.Error()))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	if id := CorrelationID(ctx); id != "" {
		out = append(out, zap.String("correlation_id", id))
	}
	return out
}
