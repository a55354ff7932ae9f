// Package logging builds the process logger: tint-colored text in dev, JSON in
// prod, optionally teed into a log file that rolls over daily.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

const appName = "weatherlink-logger"

// Options controls logger construction.
type Options struct {
	AppEnv  string
	Level   slog.Level
	File    string
	Version string

	// MaxBackups is how many rotated files are kept; zero keeps all of them.
	MaxBackups int
	MaxSizeMB  int
}

// New returns the logger and a close func for the log file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	var out io.Writer = os.Stdout
	closer := func() error { return nil }

	if opts.File != "" {
		f, err := openDailyFile(opts.File, opts.MaxBackups, opts.MaxSizeMB, time.Now)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f.Close
	}

	return newLogger(out, opts), closer, nil
}

func newLogger(w io.Writer, opts Options) *slog.Logger {
	if opts.AppEnv != "prod" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.DateTime,
			NoColor:    opts.File != "",
		})
		return slog.New(h).With("app", appName)
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: opts.Level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", opts.Version,
		"env", opts.AppEnv,
	)
}
