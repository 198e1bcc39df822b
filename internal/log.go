package internal

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log formats accepted in LOG_FORMAT.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ParseLogLevel maps ERROR, WARN, INFO, DEBUG and TRACE (any case) to a logrus level.
// Anything else yields InfoLevel.
func ParseLogLevel(s string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return logrus.ErrorLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "DEBUG":
		return logrus.DebugLevel
	case "TRACE":
		return logrus.TraceLevel
	}
	return logrus.InfoLevel
}

// NewLogger creates a logrus logger writing to out in the given format.
func NewLogger(level logrus.Level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if strings.EqualFold(format, LogFormatJSON) {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// NewDefaultLogger creates a stderr logger from the LOG_LEVEL and LOG_FORMAT environment variables
func NewDefaultLogger() *logrus.Logger {
	return NewLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT"), os.Stderr)
}
