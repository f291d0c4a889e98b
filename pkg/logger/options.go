package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Option configures New.
type Option func(*config)

// WithDebug switches between Debug and Info level.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the charmbracelet/log handler.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects slog's JSON handler. Ignored when WithPretty is set.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter replaces all writers with w.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writers = []io.Writer{w} }
}

// WithWriters writes every record to each of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) { c.writers = ws }
}

// WithSource adds file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// WithLevel sets the level from a name such as "warn" or the KB_LOG_LEVEL
// environment variable. Unknown and empty names keep the current level.
func WithLevel(name string) Option {
	return func(c *config) {
		var l slog.Level
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "debug":
			l = slog.LevelDebug
		case "info":
			l = slog.LevelInfo
		case "warn", "warning":
			l = slog.LevelWarn
		case "error":
			l = slog.LevelError
		default:
			return
		}
		c.level = l
	}
}
