// Package logger provides a configured zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type Options struct {
	Service string
	Level   string
	Format  string
	// Output defaults to stdout.
	Output io.Writer
}

// New returns a logger tagged with the service name. Call sites should use
// .Stack() on error events to include stacks.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", opts.Format)
	}

	installStackMarshalers()

	return zerolog.New(out).Level(level).With().
		Str("service", opts.Service).
		Timestamp().
		Logger(), nil
}

type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

func installStackMarshalers() {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		if _, ok := err.(stackTracer); ok {
			return err
		}
		return pkgerrors.WithStack(err)
	}
}
