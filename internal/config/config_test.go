package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrine-app/authcore/internal/config"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("IDENTITY_URL", "https://id.example.com")
	t.Setenv("IDENTITY_API_KEY", "public-key")
	t.Setenv("REFRESH_INTERVAL", "15m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://id.example.com", cfg.IdentityURL)
	assert.Equal(t, "public-key", cfg.IdentityAPIKey)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, config.BackendKeychain, cfg.CredentialBackend)
	assert.Equal(t, "peregrine-auth", cfg.KeyringService)
}

func TestLoadRequiresIdentitySettings(t *testing.T) {
	t.Setenv("IDENTITY_URL", "")
	t.Setenv("IDENTITY_API_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestValidateFileBackend(t *testing.T) {
	cfg := &config.Config{
		IdentityURL:       "https://id.example.com",
		IdentityAPIKey:    "k",
		CredentialBackend: config.BackendFile,
		RefreshInterval:   time.Minute,
	}
	require.Error(t, cfg.Validate(), "file backend without path/passphrase")

	cfg.CredentialFile = "/tmp/creds.sealed"
	require.Error(t, cfg.Validate(), "still missing passphrase")

	cfg.CredentialPassphrase = "secret"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{
		CredentialBackend: "floppy",
		RefreshInterval:   time.Minute,
	}
	require.Error(t, cfg.Validate())
}
