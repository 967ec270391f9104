package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// logStore is the part of DB the LogWriter needs.
type logStore interface {
	AddLog(ctx context.Context, entry string) error
}

// LogWriter is an io.Writer that captures log output and sends it to Redis.
// It is meant to be one sink of a MultiWriter next to stderr, so it does not
// echo what it receives.
type LogWriter struct {
	store  logStore
	errOut io.Writer
}

// NewLogWriter creates a new LogWriter.
func NewLogWriter(store logStore) *LogWriter {
	return &LogWriter{
		store:  store,
		errOut: os.Stderr,
	}
}

// Write implements the io.Writer interface.
func (lw *LogWriter) Write(p []byte) (n int, err error) {
	// The input from the log package includes a newline, which we trim.
	logEntry := strings.TrimRight(string(p), "\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := lw.store.AddLog(ctx, logEntry); err != nil {
		// Write to stderr directly; going through log would recurse.
		_, _ = fmt.Fprintf(lw.errOut, "[ERROR] Failed to write log to Redis: %v\n", err)
	}
	return len(p), nil
}
