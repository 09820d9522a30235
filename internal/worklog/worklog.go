// Package worklog wires the program's logging: a colorized console handler
// for the operator watching the run and a plain append-only file the ward
// already greps. Window titles and anything else that may carry patient
// identifiers is logged with ConsoleOnly so it never reaches the file.
package worklog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// consoleOnlyKey marks records the file sink must drop.
const consoleOnlyKey = "console_only"

// ConsoleOnly marks a record as console-only. The workflow log file stays
// free of patient data; window titles carry names.
func ConsoleOnly() slog.Attr {
	return slog.Bool(consoleOnlyKey, true)
}

// New returns a logger fanned out to the console writer and the workflow
// log file, plus a close function for the file. The console shows records
// at or above level; the file takes everything down to debug, since it is
// the trail read after a run went wrong. The file uses the long-standing
// `[YYYY-MM-DD HH:MM:SS] message` line format.
func New(console io.Writer, logPath string, level slog.Level) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open workflow log: %w", err)
	}
	logger := slog.New(multiHandler{
		tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
		NewFileHandler(f, slog.LevelDebug),
	})
	return logger, f.Close, nil
}

// multiHandler fans every record out to all child handlers.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}

// FileHandler writes `[YYYY-MM-DD HH:MM:SS] message key=value` lines and
// drops records marked ConsoleOnly.
type FileHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	prefix string // group path, dot-joined
	attrs  []slog.Attr
}

// NewFileHandler returns a FileHandler writing to w.
func NewFileHandler(w io.Writer, level slog.Level) *FileHandler {
	return &FileHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *FileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *FileHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&b, "[%s] %s", ts.Format("2006-01-02 15:04:05"), r.Message)

	skip := false
	appendAttr := func(a slog.Attr) {
		if a.Key == consoleOnlyKey {
			skip = true
			return
		}
		if a.Equal(slog.Attr{}) {
			return
		}
		fmt.Fprintf(&b, " %s%s=%s", h.prefix, a.Key, a.Value.String())
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})
	if skip {
		return nil
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *FileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &out
}

func (h *FileHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.prefix = h.prefix + name + "."
	return &out
}

// Sanitize makes text from the model or the host UI safe for a single log
// line: newlines become visible escapes and anything past max runes is cut.
func Sanitize(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if max > 0 {
		if rs := []rune(s); len(rs) > max {
			s = string(rs[:max]) + "..."
		}
	}
	return s
}
