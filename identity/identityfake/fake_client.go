// Package identityfake provides an in-memory identity.Client for tests.
package identityfake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/peregrine-app/authcore/identity"
)

// User is a registered identity inside the fake.
type User struct {
	ID             string
	Email          string
	Password       string
	EmailConfirmed bool
	Metadata       map[string]string
	RefreshToken   string
}

// FakeClient implements identity.Client with configurable failures and call
// counters, mirroring the repofake style used across the codebase.
type FakeClient struct {
	mu    sync.Mutex
	users map[string]*User // keyed by email

	// Errs, when set for a method name, is returned by that method before any
	// other behavior runs. Keys: SignUp, SignInWithPassword, SignOut,
	// RefreshToken, ResendVerification, ResetPassword, CurrentUser.
	Errs map[string]error

	// Calls counts invocations per method name.
	Calls map[string]int

	// RevokedTokens records access tokens passed to SignOut.
	RevokedTokens []string
}

// NewFakeClient creates an empty fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		users: make(map[string]*User),
		Errs:  make(map[string]error),
		Calls: make(map[string]int),
	}
}

// AddUser registers a user directly, bypassing SignUp.
func (f *FakeClient) AddUser(u User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	f.users[u.Email] = &u
}

// FailWith makes the named method return err.
func (f *FakeClient) FailWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errs[method] = err
}

// CallCount returns how many times the named method ran.
func (f *FakeClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *FakeClient) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[method]++
	return f.Errs[method]
}

func (f *FakeClient) SignUp(ctx context.Context, params identity.SignUpParams) (string, error) {
	if err := f.enter("SignUp"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[params.Email]; exists {
		return "", identity.New(identity.KindCredentialRejected, "fake.SignUp", "user already registered")
	}
	f.users[params.Email] = &User{
		ID:       uuid.NewString(),
		Email:    params.Email,
		Password: params.Password,
		Metadata: params.Metadata,
	}
	return "confirmation email sent", nil
}

func (f *FakeClient) SignInWithPassword(ctx context.Context, email, password string) (*identity.AuthenticatedUser, error) {
	if err := f.enter("SignInWithPassword"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || u.Password != password {
		return nil, identity.New(identity.KindCredentialRejected, "fake.SignInWithPassword", "invalid login credentials")
	}
	return f.issueLocked(u), nil
}

func (f *FakeClient) SignOut(ctx context.Context, accessToken string) error {
	if err := f.enter("SignOut"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RevokedTokens = append(f.RevokedTokens, accessToken)
	return nil
}

func (f *FakeClient) RefreshToken(ctx context.Context, refreshToken string) (*identity.AuthenticatedUser, error) {
	if err := f.enter("RefreshToken"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.RefreshToken != "" && u.RefreshToken == refreshToken {
			return f.issueLocked(u), nil
		}
	}
	return nil, identity.New(identity.KindSessionExpired, "fake.RefreshToken", "refresh token not found")
}

func (f *FakeClient) ResendVerification(ctx context.Context, email string) error {
	if err := f.enter("ResendVerification"); err != nil {
		return err
	}
	return nil
}

func (f *FakeClient) ResetPassword(ctx context.Context, email string) error {
	if err := f.enter("ResetPassword"); err != nil {
		return err
	}
	return nil
}

func (f *FakeClient) CurrentUser(ctx context.Context, accessToken string) (*identity.AuthenticatedUser, error) {
	if err := f.enter("CurrentUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.EmailConfirmed {
			return &identity.AuthenticatedUser{
				UserID:         u.ID,
				Email:          u.Email,
				EmailConfirmed: u.EmailConfirmed,
				Metadata:       u.Metadata,
			}, nil
		}
	}
	return nil, identity.New(identity.KindSessionExpired, "fake.CurrentUser", "bad jwt")
}

func (f *FakeClient) issueLocked(u *User) *identity.AuthenticatedUser {
	access := "access-" + uuid.NewString()
	refresh := "refresh-" + uuid.NewString()
	u.RefreshToken = refresh
	return &identity.AuthenticatedUser{
		UserID:         u.ID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmed,
		AccessToken:    access,
		RefreshToken:   refresh,
		Metadata:       u.Metadata,
	}
}

var _ identity.Client = (*FakeClient)(nil)
