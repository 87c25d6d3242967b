// Package app owns the process-wide wiring: it constructs the credential
// store, the identity and profile clients, the auth service and the refresh
// scheduler, and ties the scheduler's lifecycle to sign-in and sign-out.
// Everything is explicitly constructed and injected; there are no package
// singletons.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/peregrine-app/authcore/auth"
	"github.com/peregrine-app/authcore/identity/gotrue"
	"github.com/peregrine-app/authcore/internal/config"
	profilesrest "github.com/peregrine-app/authcore/profiles/rest"
	"github.com/peregrine-app/authcore/scheduler"
	"github.com/peregrine-app/authcore/session"
)

// App is the session/credential lifecycle core, built once at startup and
// alive for the whole process.
type App struct {
	store *session.Store
	auth  *auth.Service
	sched *scheduler.Scheduler
	log   zerolog.Logger
}

// New builds the App from configuration. Secure storage being unavailable is
// fatal here: the process cannot run without it.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ring, err := keyringFor(cfg)
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(ring, cfg.KeyringService, session.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] credential store")
	}

	authService, err := auth.NewService(auth.Collaborators{
		Identity: gotrue.New(cfg.IdentityURL, cfg.IdentityAPIKey),
		Profiles: profilesrest.New(cfg.IdentityURL, cfg.IdentityAPIKey),
		Store:    store,
	}, auth.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] auth service")
	}

	sched := scheduler.New(authService,
		scheduler.WithInterval(cfg.RefreshInterval),
		scheduler.WithLogger(logger),
	)

	return &App{
		store: store,
		auth:  authService,
		sched: sched,
		log:   logger,
	}, nil
}

func keyringFor(cfg *config.Config) (session.Keyring, error) {
	switch cfg.CredentialBackend {
	case config.BackendFile:
		return session.NewSealedFileKeyring(cfg.CredentialFile, cfg.CredentialPassphrase)
	default:
		return session.SystemKeyring(), nil
	}
}

// Start begins background refresh if a session already exists from a prior
// run. Logged-out processes schedule nothing.
func (a *App) Start() {
	if a.store.IsLoggedIn() {
		a.log.Info().Msg("existing session found, starting refresh scheduler")
		a.sched.Start()
	}
}

// Stop halts background refresh. The stored session is left as is.
func (a *App) Stop() {
	a.sched.Stop()
}

// SignIn authenticates and, on success, starts background refresh.
func (a *App) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	sess, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.sched.Start()
	return sess, nil
}

// SignOut stops background refresh and signs out. Local state is cleared
// even when the remote call fails.
func (a *App) SignOut(ctx context.Context) error {
	a.sched.Stop()
	return a.auth.SignOut(ctx)
}

// Auth exposes the operation layer for callers that need the rest of the
// surface (sign-up, resend, reset, refresh).
func (a *App) Auth() *auth.Service {
	return a.auth
}

// Store exposes the credential store for read-only UI checks.
func (a *App) Store() *session.Store {
	return a.store
}

// Scheduler exposes the refresh scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}
