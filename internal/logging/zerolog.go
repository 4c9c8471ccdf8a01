package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog logger used by the database, telemetry and
// dispatcher layers. A nil writer logs to a console writer on stdout.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(parseZerologLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewZerologMulti fans a zerolog logger out to several writers.
func NewZerologMulti(level string, writers ...io.Writer) zerolog.Logger {
	var out []io.Writer
	for _, w := range writers {
		if w != nil {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return NewZerolog(nil, level)
	}
	return NewZerolog(zerolog.MultiLevelWriter(out...), level)
}

func parseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
