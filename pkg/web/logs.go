package web

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// MaxLogs is how many lines the dashboard log panel keeps.
const MaxLogs = 200

// LogEntry is one line in the dashboard log panel.
type LogEntry struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// Logs is the ring of recent lines behind GET /api/logs.
type Logs struct {
	mu   sync.RWMutex
	buf  []LogEntry
	size int
}

// NewLogs returns an empty ring holding up to size lines.
func NewLogs(size int) *Logs {
	if size <= 0 {
		size = MaxLogs
	}
	return &Logs{buf: make([]LogEntry, 0, size), size: size}
}

// Add appends a line, evicting the oldest when full.
func (r *Logs) Add(level slog.Level, component, message string) {
	e := LogEntry{
		Time:      time.Now().Format("15:04:05"),
		Level:     strings.ToLower(level.String()),
		Component: component,
		Message:   message,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == r.size {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:r.size-1]
	}
	r.buf = append(r.buf, e)
}

// Entries returns the lines oldest first.
func (r *Logs) Entries() []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LogEntry, len(r.buf))
	copy(out, r.buf)
	return out
}

// Handler wraps next so every record at info or above is also added to
// the ring.
func (r *Logs) Handler(next slog.Handler) slog.Handler {
	return &teeHandler{next: next, logs: r}
}

type teeHandler struct {
	next      slog.Handler
	logs      *Logs
	component string
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelInfo {
		component := h.component
		msg := r.Message
		r.Attrs(func(a slog.Attr) bool {
			switch a.Key {
			case "component":
				component = a.Value.String()
			case "error":
				msg += ": " + a.Value.String()
			}
			return true
		})
		h.logs.Add(r.Level, component, msg)
	}
	return h.next.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			component = a.Value.String()
		}
	}
	return &teeHandler{next: h.next.WithAttrs(attrs), logs: h.logs, component: component}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{next: h.next.WithGroup(name), logs: h.logs, component: h.component}
}
