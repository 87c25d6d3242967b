// Package auth implements the authentication operation layer. Service is the
// only component that mutates the persisted Session; every interaction with
// the remote identity service goes through it.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peregrine-app/authcore/identity"
	"github.com/peregrine-app/authcore/profiles"
	"github.com/peregrine-app/authcore/retry"
	"github.com/peregrine-app/authcore/session"
)

// ErrVerificationRequired is returned by SignIn when the identity exists but
// the email has not been confirmed yet. No session is persisted in that case.
var ErrVerificationRequired = identity.New(
	identity.KindCredentialRejected,
	"auth.SignIn",
	"email not verified - check your inbox for the verification link",
)

// ErrNoRefreshToken is returned by RefreshSession when no refresh token is
// stored locally.
var ErrNoRefreshToken = identity.New(
	identity.KindSessionExpired,
	"auth.RefreshSession",
	"no refresh token stored",
)

// Collaborators holds the external dependencies of the Service.
type Collaborators struct {
	Identity identity.Client // Remote identity service
	Profiles profiles.Repo   // Remote profile store
	Store    *session.Store  // Encrypted local credential store
}

// Service performs sign-up, sign-in, sign-out, refresh and the related
// fire-and-forget operations. Network-sensitive calls run under the retry
// policy; refresh deliberately does not (the scheduler waits for the next
// tick instead of hammering an unreachable service).
type Service struct {
	deps  Collaborators
	retry *retry.Policy
	log   zerolog.Logger
}

// Option defines a function type to modify the Service instance.
type Option func(*Service)

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(s *Service) {
		s.retry = p
	}
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// NewService initializes a Service with required collaborators.
func NewService(deps Collaborators, options ...Option) (*Service, error) {
	if deps.Identity == nil {
		return nil, errors.New("[NewService] identity client is required")
	}
	if deps.Profiles == nil {
		return nil, errors.New("[NewService] profiles repo is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewService] session store is required")
	}

	s := &Service{
		deps:  deps,
		retry: retry.New(),
		log:   log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// SignUp registers a new identity. Username and phone number travel as
// user metadata on the remote record; profile bootstrap picks them up after
// the first verified sign-in. No session is created here - the account needs
// email verification first.
func (s *Service) SignUp(ctx context.Context, email, password, username, phoneNumber string) (string, error) {
	metadata := map[string]string{}
	if username != "" {
		metadata["username"] = username
	}
	if phoneNumber != "" {
		metadata["phone_number"] = phoneNumber
	}

	msg, err := retry.Value(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.deps.Identity.SignUp(ctx, identity.SignUpParams{
			Email:    email,
			Password: password,
			Metadata: metadata,
		})
	})
	if err != nil {
		return "", errors.Wrap(err, "[SignUp] identity sign-up")
	}
	return msg, nil
}

// SignIn authenticates and persists the resulting Session. An unverified
// identity is signed out remotely and rejected with ErrVerificationRequired;
// nothing is ever stored for it. Profile bootstrap is best-effort and never
// fails the sign-in.
func (s *Service) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	user, err := retry.Value(ctx, s.retry, func(ctx context.Context) (*identity.AuthenticatedUser, error) {
		return s.deps.Identity.SignInWithPassword(ctx, email, password)
	})
	if err != nil {
		return nil, errors.Wrap(err, "[SignIn] identity sign-in")
	}

	if !user.EmailConfirmed {
		// Hard rule: an unverified session is torn down remotely and never
		// persisted locally.
		if err := s.deps.Identity.SignOut(ctx, user.AccessToken); err != nil {
			s.log.Warn().Err(err).Msg("sign-in: failed to revoke unverified session")
		}
		return nil, ErrVerificationRequired
	}

	s.ensureProfile(ctx, user)

	saved := s.deps.Store.Save(session.Session{
		UserID:         user.UserID,
		AccessToken:    user.AccessToken,
		RefreshToken:   user.RefreshToken,
		Email:          user.Email,
		EmailConfirmed: true,
	})
	s.log.Info().Str("user_id", user.UserID).Msg("signed in")
	return &saved, nil
}

// SignOut revokes the remote session best-effort and always clears the local
// Session; a user can log out with no connectivity. The remote failure, if
// any, is returned for the caller to report.
func (s *Service) SignOut(ctx context.Context) error {
	var remoteErr error
	if token, ok := s.deps.Store.AccessToken(); ok {
		if err := s.deps.Identity.SignOut(ctx, token); err != nil {
			s.log.Warn().Err(err).Msg("sign-out: remote revocation failed, clearing locally anyway")
			remoteErr = errors.Wrap(err, "[SignOut] remote sign-out")
		}
	}
	s.deps.Store.Clear()
	s.log.Info().Msg("signed out")
	return remoteErr
}

// RefreshSession mints a fresh token pair from the stored refresh token and
// overwrites the Session. On failure the prior Session stays untouched - a
// transient refresh failure must not log the user out. Deliberately not
// retried here; the scheduler's next tick is the retry.
func (s *Service) RefreshSession(ctx context.Context) error {
	refreshToken, ok := s.deps.Store.RefreshToken()
	if !ok {
		return ErrNoRefreshToken
	}

	if token, ok := s.deps.Store.AccessToken(); ok {
		if exp, ok := accessTokenExpiry(token); ok {
			s.log.Debug().Time("access_token_expiry", exp).Msg("refreshing session")
		}
	}

	user, err := s.deps.Identity.RefreshToken(ctx, refreshToken)
	if err != nil {
		return errors.Wrap(err, "[RefreshSession] refresh grant")
	}

	prior, _ := s.deps.Store.Session()
	sess := session.Session{
		UserID:         user.UserID,
		AccessToken:    user.AccessToken,
		RefreshToken:   user.RefreshToken,
		Email:          user.Email,
		EmailConfirmed: user.EmailConfirmed,
	}
	// Some services return a sparse user object on the refresh grant; keep
	// the identity fields we already have.
	if sess.UserID == "" {
		sess.UserID = prior.UserID
	}
	if sess.Email == "" {
		sess.Email = prior.Email
		sess.EmailConfirmed = prior.EmailConfirmed
	}
	s.deps.Store.Save(sess)
	s.log.Debug().Str("user_id", sess.UserID).Msg("session refreshed")
	return nil
}

// ResendVerificationEmail asks the identity service to resend the signup
// confirmation email.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.deps.Identity.ResendVerification(ctx, email)
	})
	return errors.Wrap(err, "[ResendVerificationEmail] identity resend")
}

// ResetPassword asks the identity service to send a password recovery email.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.deps.Identity.ResetPassword(ctx, email)
	})
	return errors.Wrap(err, "[ResetPassword] identity recover")
}

// IsSessionValid is a cheap local check: logged-in according to the store.
// No network call is made; the next real API call is the actual validator.
func (s *Service) IsSessionValid() bool {
	return s.deps.Store.IsLoggedIn()
}

// CurrentUserID returns the signed-in user's ID, if any.
func (s *Service) CurrentUserID() (string, bool) {
	return s.deps.Store.UserID()
}

// CurrentEmail returns the signed-in user's email, if any.
func (s *Service) CurrentEmail() (string, bool) {
	return s.deps.Store.Email()
}

// ensureProfile creates the remote profile row on first verified sign-in.
// Username comes from sign-up metadata, falling back to the email's local
// part. Failures are logged and swallowed.
func (s *Service) ensureProfile(ctx context.Context, user *identity.AuthenticatedUser) {
	_, err := s.deps.Profiles.SelectByUserID(ctx, user.UserID)
	if err == nil {
		return
	}
	if !errors.Is(err, profiles.ErrNotFound) {
		s.log.Warn().Err(err).Str("user_id", user.UserID).Msg("profile lookup failed, skipping bootstrap")
		return
	}

	username := user.Metadata["username"]
	if username == "" {
		username = emailLocalPart(user.Email)
	}
	p := &profiles.Profile{
		ID:          uuid.NewString(),
		UserID:      user.UserID,
		Username:    username,
		Email:       user.Email,
		PhoneNumber: user.Metadata["phone_number"],
	}
	if err := s.deps.Profiles.Insert(ctx, p); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.UserID).Msg("profile bootstrap failed")
		return
	}
	s.log.Info().Str("user_id", user.UserID).Str("username", username).Msg("profile bootstrapped")
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// accessTokenExpiry peeks at the exp claim of a JWT access token without
// verifying the signature; it only feeds logging.
func accessTokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
