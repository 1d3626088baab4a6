package config

import (
	"os"
)

const (
	appIDVar   = "APP_ID"
	appNameVar = "APP_NAME"
	apiURLVar  = "API_URL"
)

type EnvConfig interface {
	GetAppID() string
	GetAppName() string
	GetAPIBaseURL() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetAppID returns the application identifier used to scope persisted storage keys.
func (EnvVars) GetAppID() string {
	return GetEnv(appIDVar, "app")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Identity Client")
}

// GetAPIBaseURL returns the base URL of the backend API (e.g. "https://api.kommi.click")
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiURLVar, "http://localhost:8080")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
