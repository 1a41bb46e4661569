package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const runIDPrefixLen = 8

// prettyHandler renders one line per record:
//
//	2026-01-02T15:04:05Z INFO workflow[resolve]: message key=value run=1a2b3c4d
//
// component and stage move into the prefix; the run id is shortened and
// printed last so resolve output stays scannable.
type prettyHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	attrs     []slog.Attr
	group     string
	addSource bool
	color     bool
}

func newPrettyHandler(w io.Writer, level slog.Level, addSource, color bool) *prettyHandler {
	return &prettyHandler{mu: new(sync.Mutex), w: w, level: level, addSource: addSource, color: color}
}

// colorEnabled reports whether every output is an interactive terminal.
// Files never receive escape codes.
func colorEnabled(outputs []string) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	for _, out := range outputs {
		var f *os.File
		switch strings.TrimSpace(out) {
		case "stdout":
			f = os.Stdout
		case "stderr":
			f = os.Stderr
		default:
			return false
		}
		if fd := f.Fd(); !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return false
		}
	}
	return len(outputs) > 0
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	var component, stage, runID string
	fields := make([]slog.Attr, 0, len(h.attrs)+record.NumAttrs())
	collect := func(a slog.Attr) {
		switch a.Key {
		case FieldComponent:
			component = a.Value.String()
		case FieldStage:
			stage = a.Value.String()
		case FieldRunID:
			runID = a.Value.String()
		default:
			fields = append(fields, a)
		}
	}
	for _, a := range h.attrs {
		collect(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		collect(a)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	if h.color {
		buf.WriteString(levelColor(record.Level) + record.Level.String() + ansiReset)
	} else {
		buf.WriteString(record.Level.String())
	}
	buf.WriteByte(' ')
	if component != "" {
		buf.WriteString(component)
		if stage != "" {
			buf.WriteString("[" + stage + "]")
		}
		buf.WriteString(": ")
	} else if stage != "" {
		buf.WriteString("[" + stage + "]: ")
	}
	buf.WriteString(record.Message)
	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	for _, a := range fields {
		writeAttr(&buf, "", a)
	}
	if runID != "" {
		if len(runID) > runIDPrefixLen {
			runID = runID[:runIDPrefixLen]
		}
		buf.WriteString(" run=" + runID)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		name = clone.group + "." + name
	}
	clone.group = name
	return &clone
}

func writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, inner := range v.Group() {
			writeAttr(buf, key, inner)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(v))
}

func formatValue(v slog.Value) string {
	var s string
	if v.Kind() == slog.KindTime {
		s = v.Time().UTC().Format(time.RFC3339)
	} else {
		s = v.String()
	}
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}

const ansiReset = "\x1b[0m"

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\x1b[31m"
	case level >= slog.LevelWarn:
		return "\x1b[33m"
	case level >= slog.LevelInfo:
		return "\x1b[36m"
	default:
		return "\x1b[90m"
	}
}
