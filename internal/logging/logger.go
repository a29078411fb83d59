// Package logging provides structured logging for the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/watertap-org/flowsheet-int/internal/constants"
)

// Logger wraps zerolog with console and optional rotated-file output.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer
	file   *lumberjack.Logger
}

// Options configures NewLogger.
type Options struct {
	// Console receives human-readable output. Nil means os.Stderr.
	Console io.Writer
	// File, when set, also receives JSON lines, rotated by size.
	File string
}

// NewLogger creates a logger. Logs go to stderr so stdout stays clean for
// command output (layouts, JSON, YAML).
func NewLogger(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var output io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: "15:04:05",
		NoColor:    !isTerminal(console),
	}

	l := &Logger{}
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    constants.LogFileMaxSizeMB,
			MaxBackups: constants.LogFileMaxBackups,
			MaxAge:     constants.LogFileMaxAgeDays,
			Compress:   true,
		}
		output = zerolog.MultiLevelWriter(output, l.file)
	}

	l.output = output
	l.zlog = zerolog.New(output).With().Timestamp().Logger()
	return l
}

// isTerminal reports whether w is a terminal; colors are only written to one.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewDefaultCLILogger creates a console-only logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(Options{})
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
