package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	AppName  string `env:"APP_NAME" envDefault:"OIDC Session"`
	Env      string `env:"ENV" envDefault:"DEV"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return fmt.Sprintf(":%s", e.Port)
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// IsProduction reports whether ENV is "production" (case insensitive).
func (e EnvVars) IsProduction() bool {
	return strings.EqualFold(e.Env, "production")
}
