package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NewLogger creates a JSON logger writing to stdout
func NewLogger(level LogLevel) *logrus.Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a JSON logger writing to w
func NewLoggerTo(w io.Writer, level LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetLevel(parseLogLevel(level))
	return logger
}

// Discard returns a logger that drops everything, for tests
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func parseLogLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// LogStartup logs service startup information
func LogStartup(logger *logrus.Logger, version, port, mode string) {
	logger.WithFields(logrus.Fields{
		"event":     "startup",
		"version":   version,
		"port":      port,
		"scan_mode": mode,
	}).Info("Album scanner starting")
}

// LogShutdown logs a completed shutdown
func LogShutdown(logger *logrus.Logger, duration float64) {
	logger.WithFields(logrus.Fields{
		"event":            "shutdown_complete",
		"duration_seconds": duration,
	}).Info("Shutdown complete")
}
