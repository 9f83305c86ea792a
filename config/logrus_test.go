package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigureLoggerAppliesDevelopmentSettings(t *testing.T) {
	prev := AppConfig
	defer func() {
		AppConfig = prev
		logg.SetLevel(logrus.InfoLevel)
		logg.SetFormatter(&logrus.JSONFormatter{})
	}()

	AppConfig.Environment = "development"
	ConfigureLogger()

	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)
}

func TestConfigureLoggerKeepsProductionDefaults(t *testing.T) {
	prev := AppConfig
	defer func() { AppConfig = prev }()

	AppConfig.Environment = "production"
	ConfigureLogger()

	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, GetLogger().Formatter)
}
