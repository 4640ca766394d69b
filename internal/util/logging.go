package util

import (
	"github.com/sirupsen/logrus"
)

// NewLogger builds a logger for the CLI tools. Verbosity follows the
// usual counting convention: 0 warns, 1 informs, 2+ debugs.
func NewLogger(verbosity int) *logrus.Logger {
	logger := logrus.New()
	switch {
	case verbosity <= 0:
		logger.SetLevel(logrus.WarnLevel)
	case verbosity == 1:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}
