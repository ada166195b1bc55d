// Package logger configures the process-wide charmbracelet/log logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options holds configuration for the default logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text, json, logfmt
	Prefix string
}

// DefaultOptions returns info-level text output.
func DefaultOptions(prefix string) Options {
	return Options{Level: "info", Format: "text", Prefix: prefix}
}

// New builds a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	formatter, err := parseFormatter(opts.Format)
	if err != nil {
		return nil, err
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          opts.Prefix,
	}), nil
}

// Setup installs a stderr logger as the package default so the package-level
// log functions pick it up everywhere.
func Setup(opts Options) (*log.Logger, error) {
	l, err := New(os.Stderr, opts)
	if err != nil {
		return nil, err
	}
	log.SetDefault(l)
	return l, nil
}

func parseFormatter(format string) (log.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("invalid log format %q", format)
	}
}
