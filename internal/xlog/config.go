package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewConfig returns the default logging configuration: text output to
// stdout at info level, no file sink.
func NewConfig() Config {
	return Config{
		Level:        slog.LevelInfo,
		AddSource:    true,
		AttrReplacer: NormalizeSourceAttrReplacer(),
		StdFormat:    "text",
		StdWriter:    os.Stdout,
		Path:         "",
		MaxSize:      30,
		MaxAge:       0,
		MaxBackups:   0,
		Compress:     false,
	}
}

// Config controls how a Logger's Handler is constructed.
type Config struct {
	// Level is the minimum level logged.
	Level slog.Level
	// AddSource controls whether the source file/line is attached to records.
	AddSource bool
	// AttrReplacer rewrites attributes before they are logged.
	AttrReplacer AttrReplacer

	// StdFormat is the console output format, "text" or "json".
	StdFormat string
	// StdWriter is the console sink, defaults to os.Stdout.
	StdWriter io.Writer

	// Path is the rotating log file path. Empty disables the file sink.
	Path string
	// MaxSize is the max size in MB of a log file before it gets rotated.
	MaxSize int
	// MaxAge is the max number of days to retain rotated log files.
	MaxAge int
	// MaxBackups is the max number of rotated log files to retain.
	MaxBackups int
	// Compress enables gzip compression of rotated log files.
	Compress bool
}

// ParseLevel parses a single-word directive ("debug", "info", "warn",
// "error") into a slog.Level, the reduction of rockslide.log's directive
// string used by the deployment config (see internal/config).
func ParseLevel(directive string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(directive)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("xlog: unknown log directive %q", directive)
	}
}

// BuildHandler creates a new slog.Handler from the config.
func (c *Config) BuildHandler() slog.Handler {
	opts := c.buildHandlerOptions()
	if c.StdFormat == "json" {
		writer := c.StdWriter
		if fw := c.buildFileWriter(); fw != nil {
			writer = io.MultiWriter(c.StdWriter, fw)
		}
		return NewLeveledHandlerCreator(JSONHandlerCreator)(writer, opts)
	}

	handlers := []slog.Handler{
		NewLeveledHandlerCreator(TextHandlerCreator)(c.StdWriter, opts),
	}
	if fw := c.buildFileWriter(); fw != nil {
		handlers = append(handlers, NewLeveledHandlerCreator(JSONHandlerCreator)(fw, opts))
	}
	return MultiHandler(handlers...)
}

func (c *Config) buildFileWriter() io.Writer {
	if c.Path == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   c.Path,
		MaxSize:    c.MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

func (c *Config) buildHandlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		AddSource:   c.AddSource,
		Level:       c.Level,
		ReplaceAttr: c.AttrReplacer,
	}
}
