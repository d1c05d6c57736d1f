package flags

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

var logLevel slog.LevelVar

func init() {
	h := &errTrackingHandler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}),
	}

	slog.SetDefault(slog.New(h))
	slog.SetLogLoggerLevel(slog.LevelError)
}

var loggedError atomic.Bool

// ExitError ends the process, failing it if anything was logged at
// error level. The binaries keep going past per-directory failures, so
// the log is the only place "something went wrong" accumulates.
func ExitError() {
	if loggedError.Load() {
		os.Exit(1)
	}
	os.Exit(0)
}

// errTrackingHandler remembers whether an error-level record ever
// passed through, for ExitError.
type errTrackingHandler struct {
	slog.Handler
}

func (h *errTrackingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		loggedError.Store(true)
	}
	return h.Handler.Handle(ctx, r)
}
