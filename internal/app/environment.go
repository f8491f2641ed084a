package app

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read once at startup.
const (
	EnvSecretsStorePassword = "SECRETS_STORE_PASSWORD"
	EnvDevMode              = "DEV_MODE"
	EnvLogFolderID          = "DSCONF_LOG_FOLDER_ID"
	EnvDefaultLogging       = "DSCONF_DEFAULT_LOGGING"
)

// Environment is the typed view of the process environment the
// application depends on.
type Environment struct {
	SecretsStorePassword string
	DevMode              bool
	LogFolderID          string
	DefaultLogging       bool
}

// LoadEnvironment reads the environment through getenv. os.Getenv is used
// when getenv is nil.
func LoadEnvironment(getenv func(string) string) Environment {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Environment{
		SecretsStorePassword: getenv(EnvSecretsStorePassword),
		DevMode:              truthy(getenv(EnvDevMode)),
		LogFolderID:          strings.TrimSpace(getenv(EnvLogFolderID)),
		DefaultLogging:       truthy(getenv(EnvDefaultLogging)),
	}
}

// truthy treats any non-empty value other than a false boolean as set.
func truthy(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}
