package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns the process logger. Text output to stdout; services attach
// their own attrs per call site.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// NewDiscard returns a logger that drops everything. For tests.
func NewDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
