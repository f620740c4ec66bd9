package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is usable before InitLogger runs; tests log through the default text formatter.
var Logger = logrus.New()

func InitLogger(level string) {
	Logger.SetFormatter(&logrus.JSONFormatter{})
	Logger.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
}

// SetOutput redirects log output, mostly for silencing tests.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

func LogInfo(message string, fields logrus.Fields) {
	Logger.WithFields(fields).Info(message)
}

func LogWarn(message string, fields logrus.Fields) {
	Logger.WithFields(fields).Warn(message)
}

func LogError(message string, err error, fields logrus.Fields) {
	entry := Logger.WithFields(fields)
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	entry.Error(message)
}

func LogDebug(message string, fields logrus.Fields) {
	Logger.WithFields(fields).Debug(message)
}
