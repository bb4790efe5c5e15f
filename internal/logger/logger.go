package logger

import (
	"log/slog"
	"os"
)

var base *slog.Logger

// Init configures the process-wide JSON logger. Safe to call once at startup;
// the other functions fall back to initializing lazily so tests need no setup.
func Init() {
	base = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(base)
}

func logger() *slog.Logger {
	if base == nil {
		Init()
	}
	return base
}

func attrs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func Info(msg string, fields map[string]any) {
	logger().Info(msg, attrs(fields)...)
}

func Warn(msg string, fields map[string]any) {
	logger().Warn(msg, attrs(fields)...)
}

func Error(msg string, fields map[string]any) {
	logger().Error(msg, attrs(fields)...)
}

// Fatal logs at error level and exits. Reserved for startup failures.
func Fatal(msg string, fields map[string]any) {
	logger().Error(msg, attrs(fields)...)
	os.Exit(1)
}
