package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. InitLogger adjusts level and format from the
// environment; until then it behaves as a standard logrus logger.
var Log = logrus.New()

func InitLogger() {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if os.Getenv("LOG_FORMAT") == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}
