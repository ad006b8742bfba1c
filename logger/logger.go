/*
 * Copyright 2025 The TempoQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides logging for TempoQL. The Logger interface keeps
// the engine decoupled from the backend; the default implementation is
// backed by logrus.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level defines log levels.
type Level int

const (
	// DEBUG displays detailed debug information
	DEBUG Level = iota
	// INFO displays general information
	INFO
	// WARN displays warning information
	WARN
	// ERROR only displays error information
	ERROR
	// OFF disables logging
	OFF
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case OFF:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the basic methods for logging.
type Logger interface {
	// Debug records debug level logs
	Debug(format string, args ...interface{})
	// Info records info level logs
	Info(format string, args ...interface{})
	// Warn records warning level logs
	Warn(format string, args ...interface{})
	// Error records error level logs
	Error(format string, args ...interface{})
	// SetLevel sets the log level
	SetLevel(level Level)
}

// logrusLogger adapts a logrus logger to the Logger interface.
type logrusLogger struct {
	backend *logrus.Logger
}

// NewLogger creates a logger writing to output at the given level.
func NewLogger(level Level, output io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l.SetLevel(logrusLevel(level))
	return &logrusLogger{backend: l}
}

func logrusLevel(level Level) logrus.Level {
	switch level {
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case OFF:
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *logrusLogger) Debug(format string, args ...interface{}) {
	l.backend.Debugf(format, args...)
}

func (l *logrusLogger) Info(format string, args ...interface{}) {
	l.backend.Infof(format, args...)
}

func (l *logrusLogger) Warn(format string, args ...interface{}) {
	l.backend.Warnf(format, args...)
}

func (l *logrusLogger) Error(format string, args ...interface{}) {
	l.backend.Errorf(format, args...)
}

func (l *logrusLogger) SetLevel(level Level) {
	l.backend.SetLevel(logrusLevel(level))
}

// discardLogger discards all log output.
type discardLogger struct{}

// NewDiscardLogger creates a logger that discards all logs.
func NewDiscardLogger() Logger {
	return &discardLogger{}
}

func (d *discardLogger) Debug(format string, args ...interface{}) {}
func (d *discardLogger) Info(format string, args ...interface{})  {}
func (d *discardLogger) Warn(format string, args ...interface{})  {}
func (d *discardLogger) Error(format string, args ...interface{}) {}
func (d *discardLogger) SetLevel(level Level)                     {}

// Global default logger.
var defaultInstance Logger = NewLogger(INFO, os.Stdout)

// SetDefault sets the global default logger.
func SetDefault(logger Logger) {
	defaultInstance = logger
}

// GetDefault gets the global default logger.
func GetDefault() Logger {
	return defaultInstance
}

// Debug uses the default logger to record debug information.
func Debug(format string, args ...interface{}) {
	defaultInstance.Debug(format, args...)
}

// Info uses the default logger to record information.
func Info(format string, args ...interface{}) {
	defaultInstance.Info(format, args...)
}

// Warn uses the default logger to record warnings.
func Warn(format string, args ...interface{}) {
	defaultInstance.Warn(format, args...)
}

// Error uses the default logger to record errors.
func Error(format string, args ...interface{}) {
	defaultInstance.Error(format, args...)
}
