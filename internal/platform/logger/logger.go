// Package logger provides structured logging for the game server.
// Every game action should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides levelled logging with a fixed prefix per level.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance writing info and warnings to
// stdout and errors to stderr.
func NewLogger() *Logger {
	return New(os.Stdout, os.Stderr)
}

// New creates a logger over explicit writers.
func New(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		infoLogger:  log.New(out, "[EPIDEMIC-INFO] ", flags),
		warnLogger:  log.New(out, "[EPIDEMIC-WARN] ", flags),
		errorLogger: log.New(errOut, "[EPIDEMIC-ERROR] ", flags),
	}
}

// Discard returns a logger that drops everything. Used by tests and the simulator.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(2, fmt.Sprintf(format, args...))
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, msg)
}

// Warnf logs a formatted warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(2, fmt.Sprintf(format, args...))
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, msg)
}

// Errorf logs a formatted error.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprintf(format, args...))
}

// Event logs a specific game event for later auditing.
func (l *Logger) Event(eventType string, gameID string, details string) {
	l.infoLogger.Output(2, fmt.Sprintf("[EVENT:%s] Game:%s | %s", eventType, gameID, details))
}
