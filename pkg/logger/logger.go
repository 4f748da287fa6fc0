package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Init configures the process logger. Unknown levels fall back to info.
func Init(level string) {
	l := GetLogger()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		l.WithField("level", level).Warn("Unknown log level, using info")
	}
	l.SetLevel(lvl)
}

// GetLogger returns the shared logger, creating it with JSON output on first use.
func GetLogger() *logrus.Logger {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stdout)
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
		log.SetLevel(logrus.InfoLevel)
	})
	return log
}

// SetOutput redirects log output, mainly for tests and the CLI.
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}
