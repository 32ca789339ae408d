package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Text output to stdout; structured fields
// everywhere so log aggregation stays useful once multiple instances run.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
