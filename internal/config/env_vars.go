package config

import (
	"os"
	"strings"
)

const devEnv = "DEV"

type EnvVars struct {
	Port     string `env:"PORT" envDefault:"8080"`
	AppName  string `env:"APP_NAME" envDefault:"Go Auth Bridge"`
	BaseURL  string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Env      string `env:"ENV" envDefault:"DEV"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetBaseURL is the public url of the web application, used to build the
// links sent in confirmation and recovery emails.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Env)
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == devEnv
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.LogLevel)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
