package app_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrine-app/authcore/app"
	"github.com/peregrine-app/authcore/internal/config"
)

func fileBackendConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:              "Peregrine",
		IdentityURL:          "https://id.example.com",
		IdentityAPIKey:       "public-key",
		CredentialBackend:    config.BackendFile,
		KeyringService:       "authcore-test",
		CredentialFile:       filepath.Join(t.TempDir(), "credentials.sealed"),
		CredentialPassphrase: "test-passphrase",
		RefreshInterval:      30 * time.Minute,
	}
}

func TestNewWiresFileBackend(t *testing.T) {
	application, err := app.New(fileBackendConfig(t), zerolog.Nop())
	require.NoError(t, err)

	assert.NotNil(t, application.Auth())
	assert.NotNil(t, application.Store())
	assert.False(t, application.Store().IsLoggedIn())
}

func TestNewRejectsIncompleteFileBackend(t *testing.T) {
	cfg := fileBackendConfig(t)
	cfg.CredentialPassphrase = ""

	_, err := app.New(cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestStartWithoutSessionLeavesSchedulerIdle(t *testing.T) {
	application, err := app.New(fileBackendConfig(t), zerolog.Nop())
	require.NoError(t, err)

	application.Start()
	assert.False(t, application.Scheduler().Running(), "logged-out processes schedule nothing")
	application.Stop()
}
