// Package logger is the thin leveled front over the standard log package
// used by every component. Each component owns a named instance, so a line
// reads [FirehoseSource] WARNING: ... without the caller spelling it out.
package logger

import (
	"fmt"
	"log"
	"os"
)

// -----------------------------------------------------------------------------

type Logger struct {
	name   string
	logger *log.Logger
	config interface{}
}

// -----------------------------------------------------------------------------

// NewLogger returns a named logger writing to stdout. config may be nil for
// components created before (or without) configuration.
func NewLogger(config interface{}, name string) *Logger {
	l := &Logger{
		name:   name,
		logger: log.New(os.Stdout, "", log.LstdFlags),
		config: config,
	}
	return l
}

// -----------------------------------------------------------------------------

func (l *Logger) Debug(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] DEBUG: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

func (l *Logger) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] WARNING: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

func (l *Logger) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] INFO: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

func (l *Logger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] ERROR: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Critical logs and terminates the process. Reserved for unrecoverable
// bootstrap failures; running loops report errors and keep going instead.
func (l *Logger) Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] CRITICAL: %s", l.name, msg)
	os.Exit(1)
}
