// Package logging builds the process logger.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

const timestampFormat = "2006-01-02 15:04:05"

// New returns a logger writing prefixed text lines to out. Debug events are
// only written when verbose is set.
func New(out io.Writer, verbose bool) *logrus.Logger {
	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}

	log := logrus.New()
	log.Out = out
	log.Level = level
	log.Formatter = &prefixed.TextFormatter{
		TimestampFormat: timestampFormat,
		FullTimestamp:   true,
		ForceFormatting: true,
		DisableColors:   true,
	}

	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	log.Level = logrus.PanicLevel

	return log
}
