// Package logutil builds the process logger.
package logutil

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Options controls logger construction.
type Options struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// New returns the root logger named "gridmon". Unknown levels fall back to
// info.
func New(opts Options) hclog.Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "gridmon",
		Level:      level,
		JSONFormat: opts.JSON,
		Output:     out,
	})
}

// OrDiscard returns l, or a logger that drops everything when l is nil.
func OrDiscard(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}
