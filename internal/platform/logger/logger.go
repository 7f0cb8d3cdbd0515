package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so the audit pipeline and log
// shippers get structured records.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
