package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions параметры ротации файла логов
type LogOptions struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Logger struct {
	base   *slog.Logger
	closer io.Closer
}

// NewLogger пишет в stdout и, если задан путь, в файл с ротацией через lumberjack
func NewLogger(opts LogOptions) *Logger {
	var out io.Writer = os.Stdout
	var closer io.Closer

	if opts.Path != "" {
		if dir := filepath.Dir(opts.Path); dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return &Logger{base: slog.New(handler), closer: closer}
}

// NewNopLogger для тестов
func NewNopLogger() *Logger {
	return &Logger{base: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With возвращает логгер с постоянными полями (run_id, region и т.п.)
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{base: l.base.With(fields...), closer: l.closer}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.base.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.base.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.base.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.base.Error(msg, fields...)
}

// Close закрывает файл ротации, если он был открыт
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
