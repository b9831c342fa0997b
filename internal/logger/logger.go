package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Logger.
type Options struct {
	Level         string
	HumanReadable bool
	Writer        io.Writer
}

// Logger is the diagnostic logger shared by the pipeline stages. It never
// writes to the validation output stream.
type Logger struct {
	base zerolog.Logger
}

// New creates a Logger. Writer defaults to stderr and Level to "warn".
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := zerolog.WarnLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var output io.Writer = writer
	if opts.HumanReadable {
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.RFC3339
		console.NoColor = true
		output = console
	}

	return &Logger{base: zerolog.New(output).Level(level).With().Timestamp().Logger()}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// With returns a derived logger that always writes key=value.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{base: l.base.With().Interface(key, value).Logger()}
}

// WithFields returns a derived logger that always writes the supplied fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{base: l.base.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string) {
	if l == nil {
		return
	}
	l.base.Debug().Msg(msg)
}

// Timed writes a debug entry carrying the time elapsed since start.
func (l *Logger) Timed(start time.Time, msg string) {
	if l == nil {
		return
	}
	l.base.Debug().Dur("elapsed", time.Since(start)).Msg(msg)
}

func (l *Logger) Info(msg string) {
	if l == nil {
		return
	}
	l.base.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	if l == nil {
		return
	}
	l.base.Warn().Msg(msg)
}

// Error writes an error entry including err when non-nil.
func (l *Logger) Error(err error, msg string) {
	if l == nil {
		return
	}
	event := l.base.Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}
