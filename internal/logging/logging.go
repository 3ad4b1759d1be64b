// Package logging builds the process logger.
//
// Stdout carries protocol traffic, so every logger writes to stderr.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options controls logger construction.
type Options struct {
	Level zerolog.Level
	// Pretty forces the console writer even when the output is not a terminal.
	Pretty bool
}

// New returns a logger writing to stderr.
func New(opts Options) zerolog.Logger {
	return NewWriter(os.Stderr, opts)
}

// NewWriter returns a logger writing to w. The console writer is used when
// opts.Pretty is set or w is a terminal.
func NewWriter(w io.Writer, opts Options) zerolog.Logger {
	out := w
	if opts.Pretty || isTerminal(w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	}
	return zerolog.New(out).Level(opts.Level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
