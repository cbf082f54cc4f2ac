package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// FileName is the log file written inside the logging directory.
const FileName = "adaguc-checker.log"

// Setup initializes the global slog logger using charmbracelet/log as the backend.
// If the output is a terminal, uses colored text format. Otherwise, uses JSON format.
//
// When logDir is set, logs go to logDir/adaguc-checker.log at debug level
// instead. The returned closer releases the log file; it is a no-op for
// stderr logging.
func Setup(verbose bool, logDir string) (io.Closer, error) {
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logging directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(logDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		handler := newHandler(f, charmlog.DebugLevel)
		handler.SetFormatter(charmlog.JSONFormatter)
		slog.SetDefault(slog.New(handler))
		return f, nil
	}

	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	handler := newHandler(os.Stderr, level)

	// Use plain format for non-TTY output
	if !isTerminal() {
		handler.SetFormatter(charmlog.JSONFormatter)
	}

	slog.SetDefault(slog.New(handler))
	return nopCloser{}, nil
}

func newHandler(w io.Writer, level charmlog.Level) *charmlog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
	})
	handler.SetLevel(level)
	return handler
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
