package logger

import (
	"log"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger builds the process logger for the given environment:
// local writes to stdout at debug level, dev and prod append to
// logPath, prod at info level.
func SetupLogger(env, logPath string) *slog.Logger {
	if env == envLocal {
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	level := slog.LevelDebug
	switch env {
	case envDev:
	case envProd:
		level = slog.LevelInfo
	default:
		log.Fatal("invalid environment: ", env)
	}

	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal("open log file: ", err)
	}
	log.Printf("env: %s; log file: %s", env, logPath)

	return slog.New(
		slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}),
	)
}
