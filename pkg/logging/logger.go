// Package logging provides component-scoped diagnostics for browserd.
//
// Everything is written to stderr (stdout belongs to the protocol), and can be
// duplicated into a log file. All loggers of one process share a session ID so
// that lines from the codec, the sequencer and the sandbox can be correlated.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Options configures the process-wide log sink.
type Options struct {
	// Level is a logrus level name ("debug", "info", "warn", ...). Empty means info.
	Level string

	// File optionally duplicates every entry into this path (append mode).
	File string

	// Output overrides the primary sink. Defaults to os.Stderr.
	Output io.Writer
}

// Logger writes entries tagged with its component and the session ID.
type Logger struct {
	component string
	entry     *logrus.Entry
}

var (
	// Global session ID for the current process
	sessionID     string
	sessionIDOnce sync.Once

	mu      sync.Mutex
	base    = newBase(os.Stderr)
	logFile *os.File
)

// getSessionID returns or creates the session ID for this process
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

func newBase(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		DisableColors:   !isTerminal(out),
	})
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Setup configures the shared sink. Loggers created before Setup pick up the
// new configuration because they all write through the same base logger.
func Setup(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = file
		out = io.MultiWriter(out, file)
	}

	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		DisableColors:   opts.File != "" || !isTerminal(out),
	})
	base.SetLevel(level)
	return nil
}

// NewLogger creates a logger for a specific component.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		entry: base.WithFields(logrus.Fields{
			"component": component,
			"session":   getSessionID(),
		}),
	}
}

// WithField returns a logger that adds key=value to every entry.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{component: l.component, entry: l.entry.WithField(key, value)}
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

// DebugMode reports whether debug entries are currently emitted.
func (l *Logger) DebugMode() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}

// Writer returns an io.Writer that logs each written line at the given level.
// The caller must close it.
func (l *Logger) Writer(level logrus.Level) *io.PipeWriter {
	return l.entry.WriterLevel(level)
}

// Component returns the component name of this logger.
func (l *Logger) Component() string {
	return l.component
}

// GetSessionID returns the current process session ID
func GetSessionID() string {
	return getSessionID()
}

// Close releases the log file, if any. Safe to call multiple times.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	base.SetOutput(os.Stderr)
	return err
}
