package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dexsystem/coachpay/config"
)

const serviceName = "coachpay"

// New builds a logger from config. Stdout and the rotating file can both be
// enabled; when neither is, stdout is used.
func New(cfg *config.Config) *slog.Logger {
	return slog.New(newHandler(cfg, nil)).With(
		slog.String("service", serviceName),
		slog.String("env", cfg.Server.Environment),
	)
}

// newHandler fans out to stdout and the rotating file. extra is appended for
// tests.
func newHandler(cfg *config.Config, extra io.Writer) slog.Handler {
	isDev := cfg.IsDevelopment()

	var writers []io.Writer
	if cfg.Logging.Stdout || (!cfg.Logging.File.Enabled && extra == nil) {
		writers = append(writers, os.Stdout)
	}
	if cfg.Logging.File.Enabled {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Logging.File.Path,
			MaxSize:    cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAge:     cfg.Logging.File.MaxAgeDays,
			Compress:   cfg.Logging.File.Compress,
		})
	}
	if extra != nil {
		writers = append(writers, extra)
	}

	w := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Logging.Level),
		AddSource: isDev,
	}
	if strings.EqualFold(cfg.Logging.Format, "json") || !isDev {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Nop discards everything. Used by tests and CLI commands that print their
// own output.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
