package identity

import "context"

// SignUpParams carries a registration request. Metadata is stored on the
// remote user record and comes back on later sign-ins; profile bootstrap
// reads the "username" and "phone_number" keys from it.
type SignUpParams struct {
	Email    string
	Password string
	Metadata map[string]string
}

// AuthenticatedUser is the identity service's view of a signed-in user
// together with the credential pair minted for it. RefreshToken may be empty
// when the service does not issue one.
type AuthenticatedUser struct {
	UserID         string
	Email          string
	EmailConfirmed bool
	AccessToken    string
	RefreshToken   string
	Metadata       map[string]string
}

// Client is the remote identity service. Implementations return *Error so
// callers can branch on the failure kind.
type Client interface {
	// SignUp registers a new identity and returns a human-readable
	// confirmation message. No credentials are issued until the email is
	// verified.
	SignUp(ctx context.Context, params SignUpParams) (string, error)

	// SignInWithPassword exchanges credentials for a token pair. The returned
	// user may still be unverified; the caller decides what to do with it.
	SignInWithPassword(ctx context.Context, email, password string) (*AuthenticatedUser, error)

	// SignOut revokes the remote session behind the access token.
	SignOut(ctx context.Context, accessToken string) error

	// RefreshToken mints a fresh token pair from a refresh token.
	RefreshToken(ctx context.Context, refreshToken string) (*AuthenticatedUser, error)

	// ResendVerification re-sends the signup confirmation email.
	ResendVerification(ctx context.Context, email string) error

	// ResetPassword sends a password recovery email.
	ResetPassword(ctx context.Context, email string) error

	// CurrentUser fetches the user record behind an access token.
	CurrentUser(ctx context.Context, accessToken string) (*AuthenticatedUser, error)
}
