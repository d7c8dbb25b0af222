package utils

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

var Log = log.New()

func SetLogLevel(level string) error {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		return fmt.Errorf("bad log level %q", level)
	}
	return nil
}

// RetryLogger adapts a logrus logger to retryablehttp.LeveledLogger.
type RetryLogger struct {
	Logger *log.Logger
}

func (l RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}

func (l RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	// retryablehttp is chatty at info; demote to debug
	l.entry(keysAndValues).Debug(msg)
}

func (l RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l RetryLogger) entry(kv []interface{}) *log.Entry {
	logger := l.Logger
	if logger == nil {
		logger = Log
	}
	fields := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return logger.WithFields(fields)
}
