package photocluster

import (
	"log"
	"log/slog"
	"os"
)

// SimpleLogger writes key=value pairs to stderr through the standard log
// package. Useful for examples and tests.
type SimpleLogger struct {
	logger *log.Logger
}

// NewSimpleLogger returns a logger writing to stderr with timestamps.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// Debug implements Logger.
func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) {
	l.print("DEBUG", msg, keysAndValues)
}

// Info implements Logger.
func (l *SimpleLogger) Info(msg string, keysAndValues ...any) {
	l.print("INFO", msg, keysAndValues)
}

// Warn implements Logger.
func (l *SimpleLogger) Warn(msg string, keysAndValues ...any) {
	l.print("WARN", msg, keysAndValues)
}

// Error implements Logger.
func (l *SimpleLogger) Error(msg string, keysAndValues ...any) {
	l.print("ERROR", msg, keysAndValues)
}

func (l *SimpleLogger) print(level, msg string, keysAndValues []any) {
	args := make([]any, 0, 2+len(keysAndValues))
	args = append(args, level, msg)
	args = append(args, keysAndValues...)
	l.logger.Println(args...)
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an slog logger; nil uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Debug implements Logger.
func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Info implements Logger.
func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn implements Logger.
func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error implements Logger.
func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}
