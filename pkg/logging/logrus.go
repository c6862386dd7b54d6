package logging

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

// Logrus hands out loggers that share one output and level.
type Logrus struct {
	logger *logrus.Logger
}

// NewLogrus creates a logger writing to output. An unknown level falls
// back to info.
func NewLogrus(level string, output io.Writer) *Logrus {
	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	})
	l := &Logrus{logger: logger}
	if err := l.SetLevel(level); err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.Warnln(err)
	}
	return l
}

func (l *Logrus) SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", level)
	}
	l.logger.SetLevel(parsed)
	return nil
}

// Get returns a logger tagged with context.
func (l *Logrus) Get(context string) *logrus.Entry {
	return l.logger.WithFields(logrus.Fields{
		"Context": context,
	})
}
