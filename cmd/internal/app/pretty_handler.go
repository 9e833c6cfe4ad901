package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// consoleStyle picks the colour for one rendered value.
type consoleStyle func(v slog.Value) *color.Color

var (
	faint  = color.New(color.FgHiBlack)
	strong = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	purple = color.New(color.FgMagenta)
	blue   = color.New(color.FgBlue)
)

var levelTags = []struct {
	min slog.Level
	tag string
	c   *color.Color
}{
	{slog.LevelError, "ERR", red},
	{slog.LevelWarn, "WRN", yellow},
	{slog.LevelInfo, "INF", blue},
	{slog.Level(-1 << 10), "DBG", purple},
}

// Keys the transport and HTTP layers log with a fixed meaning.
var consoleStyles = map[string]consoleStyle{
	"err":       func(slog.Value) *color.Color { return red },
	"attempt":   func(slog.Value) *color.Color { return strong },
	"socket_id": func(slog.Value) *color.Color { return faint },
	"clan_id":   func(slog.Value) *color.Color { return cyan },
	"path":      func(slog.Value) *color.Color { return cyan },
	"addr":      func(slog.Value) *color.Color { return cyan },
	"gateway":   func(slog.Value) *color.Color { return cyan },
	"outcome":   outcomeStyle,
	"status":    httpStatusStyle,
}

// prettyHandler renders one record per line for a terminal:
// "15:04:05.000 INF event key=value ...". Attributes added through
// WithAttrs are rendered once, under the groups open at that point.
type prettyHandler struct {
	out     io.Writer
	mu      *sync.Mutex
	level   slog.Leveler
	colored bool
	prefix  string // "a.b." for open groups
	bound   string // pre-rendered WithAttrs output
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, colored bool) slog.Handler {
	h := &prettyHandler{out: w, mu: new(sync.Mutex), level: slog.LevelInfo, colored: colored}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	next := *h
	next.prefix += name + "."
	return &next
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	for _, a := range attrs {
		h.writeAttr(&sb, h.prefix, a)
	}
	next := *h
	next.bound += sb.String()
	return &next
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}

	var sb strings.Builder
	sb.WriteString(h.colorize(faint, at.Format("15:04:05.000")))
	sb.WriteByte(' ')
	for _, lt := range levelTags {
		if r.Level >= lt.min {
			sb.WriteString(h.colorize(lt.c, lt.tag))
			break
		}
	}
	sb.WriteByte(' ')
	sb.WriteString(h.colorize(strong, r.Message))
	sb.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&sb, h.prefix, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *prettyHandler) writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := strings.TrimSpace(a.Key)

	if v.Kind() == slog.KindGroup {
		if key != "" {
			prefix += key + "."
		}
		for _, member := range v.Group() {
			h.writeAttr(sb, prefix, member)
		}
		return
	}
	if key == "" {
		return
	}

	text := quoteIfNeeded(formatValue(v))
	if strings.HasSuffix(key, "_ms") {
		if ms, ok := asMillis(v); ok {
			text = strconv.FormatInt(ms, 10) + "ms"
		}
	}
	if style, ok := consoleStyles[key]; ok {
		text = h.colorize(style(v), text)
	}

	sb.WriteByte(' ')
	sb.WriteString(h.colorize(faint, prefix+key+"="))
	sb.WriteString(text)
}

func (h *prettyHandler) colorize(c *color.Color, s string) string {
	if !h.colored || c == nil {
		return s
	}
	return c.Sprint(s)
}

func outcomeStyle(v slog.Value) *color.Color {
	switch v.String() {
	case "recovered", "already_open", "ok":
		return green
	case "exhausted", "error":
		return red
	case "already_reconnecting", "nothing_to_reconnect", "canceled":
		return yellow
	}
	return nil
}

func httpStatusStyle(v slog.Value) *color.Color {
	code, ok := asMillis(v)
	switch {
	case !ok:
		return nil
	case code >= 500:
		return red
	case code >= 400:
		return yellow
	case code >= 200 && code < 300:
		return green
	}
	return nil
}

// asMillis reads numeric values as-is and durations as milliseconds.
func asMillis(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindDuration:
		return v.Duration().Milliseconds(), true
	}
	return 0, false
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	// String, numbers, bools and durations already render the way we want.
	return v.String()
}

func quoteIfNeeded(s string) string {
	switch {
	case s == "":
		return `""`
	case strings.ContainsAny(s, " \t\r\n\"="):
		return strconv.Quote(s)
	}
	return s
}
