package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port         string `env:"PORT" envDefault:"8080"`
	AppName      string `env:"APP_NAME" envDefault:"Go SSO Service"`
	Env          string `env:"ENV" envDefault:"DEV"`
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	Version      string `env:"APP_VERSION" envDefault:"dev"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

// IsDev reports whether the service runs in the development environment,
// which enables console logging and the startup route table.
func (e EnvVars) IsDev() bool {
	return e.GetEnv() == "DEV"
}

// GetBaseURL returns the public base URL of this service (e.g., "https://app.example.com").
// It is used to derive the OAuth2 redirect URI.
func (e EnvVars) GetBaseURL() string {
	return e.BaseURL
}
