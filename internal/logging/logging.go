// Package logging builds the logrus loggers shared by the service components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logger writing to stderr.
// Format is "text" (default) or "json"; an empty level means info.
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is New with an explicit destination
func NewWithOutput(out io.Writer, level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(out)

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, &FormatError{Format: format}
	}
	return l, nil
}

// FormatError is returned for an unknown log format
type FormatError struct {
	Format string
}

func (e *FormatError) Error() string {
	return "unknown log format: " + e.Format
}

// Nop returns an entry that discards everything
func Nop() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// Component returns log tagged with the component name, or a nop entry when log is nil
func Component(log *logrus.Entry, name string) *logrus.Entry {
	if log == nil {
		return Nop()
	}
	return log.WithField("component", name)
}
