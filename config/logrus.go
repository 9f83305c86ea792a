package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

// ConfigureLogger applies the environment-dependent level once config is
// loaded: debug locally, info everywhere else.
func ConfigureLogger() {
	if AppConfig.Environment == "development" {
		logg.SetLevel(logrus.DebugLevel)
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
