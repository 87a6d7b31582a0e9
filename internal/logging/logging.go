package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// BroadcastFunc receives every formatted log line at info level or above.
// The web admin interface registers one to feed its websocket clients.
type BroadcastFunc func(level slog.Level, line string)

// Options configures Setup.
type Options struct {
	Level     slog.Level // console level; the file sink always logs debug
	Console   io.Writer  // defaults to os.Stderr; never os.Stdout (MCP stdio)
	FilePath  string     // rotated log file; empty disables the file sink
	Broadcast BroadcastFunc
}

// LevelFromEnv reads ACEMCP_LOG_LEVEL, defaulting to info.
func LevelFromEnv() slog.Level {
	switch strings.ToUpper(os.Getenv("ACEMCP_LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the process logger: a masked text handler on stderr, a
// rotated file sink (5 MiB, 10 retained, compressed), and an optional
// broadcast hook. The returned logger is also installed as slog's default.
func Setup(opts Options) *slog.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: opts.Level}),
	}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err == nil {
			rotator := &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    5, // MiB
				MaxBackups: 10,
				Compress:   true,
			}
			handlers = append(handlers, slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			fmt.Fprintf(console, "acemcp: cannot create log directory for %s: %v\n", opts.FilePath, err)
		}
	}

	if opts.Broadcast != nil {
		handlers = append(handlers, &broadcastHandler{fn: opts.Broadcast})
	}

	logger := slog.New(&maskingHandler{inner: multiHandler(handlers)})
	slog.SetDefault(logger)
	return logger
}

// maskingHandler rewrites the record message and string attribute values
// through MaskSensitive before any sink sees them.
type maskingHandler struct {
	inner slog.Handler
}

func (h *maskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *maskingHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, MaskSensitive(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(maskAttr(a))
		return true
	})
	return h.inner.Handle(ctx, nr)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &maskingHandler{inner: h.inner.WithAttrs(masked)}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{inner: h.inner.WithGroup(name)}
}

func maskAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, MaskSensitive(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, MaskSensitive(err.Error()))
		}
	}
	return a
}

// multiHandler fans one record out to several sinks.
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
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}

// broadcastHandler forwards info-and-above records as formatted lines.
type broadcastHandler struct {
	fn    BroadcastFunc
	attrs []slog.Attr
}

func (h *broadcastHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *broadcastHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	sb.WriteString(" | ")
	sb.WriteString(r.Level.String())
	sb.WriteString(" | ")
	sb.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	})
	h.fn(r.Level, sb.String())
	return nil
}

func (h *broadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &broadcastHandler{fn: h.fn, attrs: merged}
}

func (h *broadcastHandler) WithGroup(string) slog.Handler { return h }
