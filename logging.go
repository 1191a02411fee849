package main

import (
	"log"
	"strings"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelDebug
)

// Logger provides leveled logging on top of the standard logger
type Logger struct {
	level LogLevel
}

// NewLogger creates a new logger with the specified level
func NewLogger(levelStr string) *Logger {
	var level LogLevel
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		level = LogLevelDebug
	default:
		level = LogLevelInfo
	}

	return &Logger{level: level}
}

// Infof logs formatted messages at info level (always shown)
func (l *Logger) Infof(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Debugf logs formatted messages only when debug is enabled
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		log.Printf(format, v...)
	}
}

// Errorf logs failures; they are shown at every level
func (l *Logger) Errorf(format string, v ...interface{}) {
	log.Printf("Error: "+format, v...)
}

// Fatalf logs formatted fatal messages and exits
func (l *Logger) Fatalf(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}

// Global logger instance
var logger *Logger

// InitializeLogger initializes the global logger with config
func InitializeLogger(config *Config) {
	logger = NewLogger(config.Logging.Level)
}

func LogInfof(format string, v ...interface{}) {
	if logger != nil {
		logger.Infof(format, v...)
	} else {
		log.Printf(format, v...)
	}
}

func LogDebugf(format string, v ...interface{}) {
	if logger != nil {
		logger.Debugf(format, v...)
	}
}

func LogErrorf(format string, v ...interface{}) {
	if logger != nil {
		logger.Errorf(format, v...)
	} else {
		log.Printf("Error: "+format, v...)
	}
}

func LogFatalf(format string, v ...interface{}) {
	if logger != nil {
		logger.Fatalf(format, v...)
	} else {
		log.Fatalf(format, v...)
	}
}
