// Package config loads the module's settings from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Backend selects where credentials are persisted.
const (
	BackendKeychain = "keychain"
	BackendFile     = "file"
)

// Config holds everything the app wiring needs. Parsed from the environment;
// tests construct it directly.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"Peregrine"`

	// Identity service (GoTrue-style) and its public API key.
	IdentityURL    string `env:"IDENTITY_URL,required,notEmpty"`
	IdentityAPIKey string `env:"IDENTITY_API_KEY,required,notEmpty"`

	// Credential storage. BackendFile needs both file path and passphrase.
	CredentialBackend    string `env:"CREDENTIAL_BACKEND" envDefault:"keychain"`
	KeyringService       string `env:"KEYRING_SERVICE" envDefault:"peregrine-auth"`
	CredentialFile       string `env:"CREDENTIAL_FILE"`
	CredentialPassphrase string `env:"CREDENTIAL_PASSPHRASE"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "[config.Load] parse environment")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.CredentialBackend {
	case BackendKeychain:
	case BackendFile:
		if c.CredentialFile == "" {
			return errors.New("[config.Validate] CREDENTIAL_FILE required for the file backend")
		}
		if c.CredentialPassphrase == "" {
			return errors.New("[config.Validate] CREDENTIAL_PASSPHRASE required for the file backend")
		}
	default:
		return errors.Errorf("[config.Validate] unknown credential backend %q", c.CredentialBackend)
	}
	if c.RefreshInterval <= 0 {
		return errors.New("[config.Validate] refresh interval must be positive")
	}
	return nil
}
