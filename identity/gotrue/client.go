// Package gotrue implements identity.Client against a GoTrue-style REST API
// (the auth surface exposed by Supabase and compatible services).
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/peregrine-app/authcore/identity"
)

const defaultTimeout = 10 * time.Second

// Client talks to a single GoTrue deployment. The zero value is not usable;
// construct with New.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a client for the identity service at baseURL. The apiKey is
// sent on every request as the service's public API key header.
func New(baseURL, apiKey string, options ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type userPayload struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at"`
	UserMetadata     map[string]string `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         userPayload `json:"user"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignUp registers a new identity. GoTrue stores the metadata on the user
// record and sends the confirmation email itself.
func (c *Client) SignUp(ctx context.Context, params identity.SignUpParams) (string, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
	}
	if len(params.Metadata) > 0 {
		body["data"] = params.Metadata
	}
	var user userPayload
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &user, "gotrue.SignUp"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Verification email sent to %s", params.Email), nil
}

// SignInWithPassword performs the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.AuthenticatedUser, error) {
	body := map[string]any{"email": email, "password": password}
	var tr tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &tr, "gotrue.SignInWithPassword"); err != nil {
		return nil, err
	}
	return authenticatedUser(tr), nil
}

// SignOut revokes the remote session behind the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil, "gotrue.SignOut")
}

// RefreshToken performs the refresh grant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*identity.AuthenticatedUser, error) {
	body := map[string]any{"refresh_token": refreshToken}
	var tr tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &tr, "gotrue.RefreshToken"); err != nil {
		return nil, err
	}
	return authenticatedUser(tr), nil
}

// ResendVerification re-sends the signup confirmation email.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	body := map[string]any{"type": "signup", "email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/resend", "", body, nil, "gotrue.ResendVerification")
}

// ResetPassword sends a password recovery email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	body := map[string]any{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", "", body, nil, "gotrue.ResetPassword")
}

// CurrentUser fetches the user record behind an access token. No credentials
// are returned; callers keep the tokens they already hold.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*identity.AuthenticatedUser, error) {
	var user userPayload
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user, "gotrue.CurrentUser"); err != nil {
		return nil, err
	}
	return &identity.AuthenticatedUser{
		UserID:         user.ID,
		Email:          user.Email,
		EmailConfirmed: user.EmailConfirmedAt != nil,
		Metadata:       user.UserMetadata,
	}, nil
}

func authenticatedUser(tr tokenResponse) *identity.AuthenticatedUser {
	return &identity.AuthenticatedUser{
		UserID:         tr.User.ID,
		Email:          tr.User.Email,
		EmailConfirmed: tr.User.EmailConfirmedAt != nil,
		AccessToken:    tr.AccessToken,
		RefreshToken:   tr.RefreshToken,
		Metadata:       tr.User.UserMetadata,
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body any, out any, op string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return identity.Wrap(err, identity.KindUnclassified, op, "failed to encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return identity.Wrap(err, identity.KindUnclassified, op, "failed to build request")
	}
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures carry no structure; classify by message.
		return identity.Wrap(err, identity.ClassifyMessage(err.Error()), op, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(resp, op)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return identity.Wrap(err, identity.KindUnclassified, op, "failed to decode response")
		}
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response, op string) error {
	var er errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &er)

	msg := er.text()
	if msg == "" {
		msg = fmt.Sprintf("identity service returned status %d", resp.StatusCode)
	}

	kind := kindFromStatus(resp.StatusCode, er.ErrorCode, msg)
	return identity.New(kind, op, msg)
}

func kindFromStatus(status int, code, msg string) identity.Kind {
	switch code {
	case "invalid_credentials", "email_not_confirmed", "user_not_found",
		"weak_password", "email_exists", "user_already_exists", "validation_failed":
		return identity.KindCredentialRejected
	case "refresh_token_not_found", "refresh_token_already_used", "session_expired", "bad_jwt":
		return identity.KindSessionExpired
	case "over_request_rate_limit", "over_email_send_rate_limit":
		return identity.KindRateLimited
	}

	switch {
	case status == http.StatusTooManyRequests:
		return identity.KindRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusUnprocessableEntity, status == http.StatusBadRequest:
		// Some deployments omit error codes; fall through to the message.
		if k := identity.ClassifyMessage(msg); k != identity.KindUnclassified {
			return k
		}
		return identity.KindCredentialRejected
	case status >= 500:
		return identity.KindTransientNetwork
	}
	return identity.ClassifyMessage(msg)
}
