package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dhcgn/mail-export/config"
)

// setupLogger builds the run logger. --verbose overrides --log-level and
// adds source positions. With a log directory every line is also written
// to a per-run file there.
func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{
		Level:     levelFor(cfg),
		AddSource: cfg.Verbose,
	}

	var (
		out     io.Writer = os.Stdout
		cleanup           = func() error { return nil }
	)
	if cfg.LogDir != "" {
		file, err := openLogFile(cfg.LogDir, time.Now())
		if err != nil {
			return nil, cleanup, err
		}
		out = io.MultiWriter(os.Stdout, file)
		cleanup = file.Close
	}

	return slog.New(slog.NewTextHandler(out, opts)), cleanup, nil
}

func openLogFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.log", appName, now.Format("20060102T150405")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func levelFor(cfg config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	return parseLevel(cfg.LogLevel)
}

func parseLevel(name string) slog.Level {
	switch name {
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
