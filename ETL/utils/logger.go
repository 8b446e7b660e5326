package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ETLLogger is the logger used by the ingest pipeline and the dashboard
type ETLLogger struct {
	entry     *logrus.Entry
	isVerbose bool
}

// NewETLLogger creates a logger writing to stdout and, when logPath is set, to a file
func NewETLLogger(verbose bool, logPath string) (*ETLLogger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if logPath != "" {
		file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, file))
	}

	return &ETLLogger{entry: logrus.NewEntry(logger), isVerbose: verbose}, nil
}

// NewETLLoggerFrom wraps an existing logrus logger
func NewETLLoggerFrom(logger *logrus.Logger) *ETLLogger {
	return &ETLLogger{
		entry:     logrus.NewEntry(logger),
		isVerbose: logger.IsLevelEnabled(logrus.DebugLevel),
	}
}

// NewDiscardLogger returns a logger that drops everything, used in tests
func NewDiscardLogger() *ETLLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewETLLoggerFrom(logger)
}

// SetLevel changes the minimum level of the underlying logger
func (l *ETLLogger) SetLevel(level logrus.Level) {
	l.entry.Logger.SetLevel(level)
	l.isVerbose = level >= logrus.DebugLevel
}

// WithField returns a child logger carrying a structured field
func (l *ETLLogger) WithField(key string, value interface{}) *ETLLogger {
	return &ETLLogger{entry: l.entry.WithField(key, value), isVerbose: l.isVerbose}
}

// Logrus exposes the underlying logger for libraries that take one
func (l *ETLLogger) Logrus() *logrus.Logger {
	return l.entry.Logger
}

// Info logs an informational message
func (l *ETLLogger) Info(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// Warn logs a warning
func (l *ETLLogger) Warn(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

// Error logs an error message
func (l *ETLLogger) Error(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

// Debug logs a debug message (verbose mode only)
func (l *ETLLogger) Debug(format string, v ...interface{}) {
	if !l.isVerbose {
		return
	}
	l.entry.Debugf(format, v...)
}

// LogETLStart logs the start of an ingest run
func (l *ETLLogger) LogETLStart(runID string) {
	l.entry.WithField("run_id", runID).Info("Ingest run started")
}

// LogETLComplete logs the end of an ingest run
func (l *ETLLogger) LogETLComplete(startTime time.Time, rowsRead, rowsSkipped, factsLoaded int) {
	l.entry.WithFields(logrus.Fields{
		"duration":     time.Since(startTime).String(),
		"rows_read":    rowsRead,
		"rows_skipped": rowsSkipped,
		"facts_loaded": factsLoaded,
	}).Info("Ingest run finished")
}

// LogExtractStart logs the start of the extract phase
func (l *ETLLogger) LogExtractStart(source string) {
	l.Info("Extract phase started (source: %s)", source)
}

// LogExtractComplete logs the end of the extract phase
func (l *ETLLogger) LogExtractComplete(rows int, duration time.Duration) {
	l.Info("Extract phase finished in %v, %d raw rows", duration, rows)
}

// LogTransformComplete logs the end of the transform phase
func (l *ETLLogger) LogTransformComplete(facts, skipped int, duration time.Duration) {
	l.Info("Transform phase finished in %v, %d facts, %d rows skipped", duration, facts, skipped)
}

// LogLoadComplete logs the end of the load phase
func (l *ETLLogger) LogLoadComplete(table string, rows int, duration time.Duration) {
	l.Info("Loaded %d rows into %s in %v", rows, table, duration)
}
