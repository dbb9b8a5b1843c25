package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Config holds the logger configuration.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	// File is the log file used when Output is "file".
	File string `mapstructure:"file"`
}

// NewLogger initializes a new slog logger based on the provided configuration.
// Writes go through a fail-safe writer: a broken sink never surfaces an error
// to the code doing the logging.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	var handler slog.Handler

	if output == nil {
		switch cfg.Output {
		case "stdout":
			output = os.Stdout
		case "stderr":
			output = os.Stderr
		case "file":
			path := cfg.File
			if path == "" {
				path = "brigadier.log"
			}
			file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
				output = os.Stdout
			} else {
				output = file
			}
		default:
			output = os.Stdout
		}
	}
	output = FailSafe(output)

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = new(slog.Level)
	}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level: level,
		})
	case "text":
		fallthrough
	default:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// FailSafe wraps w so that write errors are swallowed. After the first
// failure the error is reported once on stderr.
func FailSafe(w io.Writer) io.Writer {
	if _, ok := w.(*failSafeWriter); ok {
		return w
	}
	return &failSafeWriter{w: w}
}

type failSafeWriter struct {
	w    io.Writer
	once sync.Once
}

func (f *failSafeWriter) Write(p []byte) (int, error) {
	if _, err := f.w.Write(p); err != nil {
		f.once.Do(func() {
			fmt.Fprintf(os.Stderr, "log sink write failed, further errors suppressed: %v\n", err)
		})
	}
	return len(p), nil
}
