package logger

import (
	"github.com/sirupsen/logrus"

	btreedb "github.com/weixu8/btree-db"
)

// Logrus wraps a logrus.Logger to implement btreedb.Logger.
type Logrus struct {
	logger *logrus.Logger
}

// NewLogrus creates a btreedb.Logger from a logrus.Logger.
func NewLogrus(logger *logrus.Logger) btreedb.Logger {
	return &Logrus{logger: logger}
}

// Error logs an error message with key-value pairs.
func (l *Logrus) Error(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Error(msg)
}

// Warn logs a warning message with key-value pairs.
func (l *Logrus) Warn(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Warn(msg)
}

// Info logs an info message with key-value pairs.
func (l *Logrus) Info(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Info(msg)
}

func argsToFields(args []any) logrus.Fields {
	out := logrus.Fields{}
	fields(args, func(key string, value any) {
		out[key] = value
	})
	return out
}
