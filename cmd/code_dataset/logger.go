package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newLogger returns a console logger, or a JSON logger when asJSON is set,
// writing to w at level. Writes are serialized, as the pipeline logs from
// several goroutines.
func newLogger(w io.Writer, level string, asJSON bool) (zerolog.Logger,
	error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	w = zerolog.SyncWriter(w)
	if !asJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
