// Package applog provides the structured logger every Operations call
// writes through: a tab-separated slog handler writing to a rotating
// logfile under the data root's Logs directory, plus stderr when attached
// to a terminal.
package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/term"

	"saveguard/internal/core"
)

// saveguardHandler formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// mu is shared across every handler WithAttrs derives from this one, since
// a scan or detect can drive several concurrent workers through the same
// logger and the underlying io.Writer has no locking of its own.
type saveguardHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	opID  string
	attrs []slog.Attr
}

func (h *saveguardHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *saveguardHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	if _, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.opID, r.Message); err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err := fmt.Fprintln(h.w)
	return err
}

func (h *saveguardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &saveguardHandler{
		mu:    h.mu,
		w:     h.w,
		opID:  h.opID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *saveguardHandler) WithGroup(string) slog.Handler { return h }

// NewOperationID mints a fresh UTC-timestamp-based id for one Operations
// call, threaded through every log line it produces.
func NewOperationID() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

// New creates <dataRoot>/Logs/<opID>.log and returns a logger scoped to
// that one operation. When stderr is a terminal, log lines are duplicated
// there too. The caller owns the returned file and must close it.
func New(dataRoot, opID string) (core.Logger, *os.File, error) {
	logDir := filepath.Join(dataRoot, "Logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, opID+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if term.IsTerminal(int(os.Stderr.Fd())) {
		w = io.MultiWriter(f, os.Stderr)
	}

	handler := &saveguardHandler{mu: &sync.Mutex{}, w: w, opID: opID}
	return &slogAdapter{l: slog.New(handler)}, f, nil
}

// slogAdapter wraps *slog.Logger to satisfy core.Logger.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
