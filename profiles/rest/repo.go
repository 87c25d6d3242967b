// Package rest implements profiles.Repo against a PostgREST-style table
// endpoint, the query surface exposed next to a GoTrue deployment.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/peregrine-app/authcore/profiles"
)

const defaultTimeout = 10 * time.Second

// Repo reaches the profiles table over HTTPS.
type Repo struct {
	baseURL string
	apiKey  string
	table   string
	http    *http.Client
}

// Option configures a Repo.
type Option func(*Repo)

// WithHTTPClient overrides the underlying HTTP client (primarily for tests).
func WithHTTPClient(h *http.Client) Option {
	return func(r *Repo) {
		r.http = h
	}
}

// WithTable overrides the table name (default "profiles").
func WithTable(name string) Option {
	return func(r *Repo) {
		r.table = name
	}
}

// New creates a Repo for the REST endpoint at baseURL.
func New(baseURL, apiKey string, options ...Option) *Repo {
	r := &Repo{
		baseURL: baseURL,
		apiKey:  apiKey,
		table:   "profiles",
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Insert creates a profile row.
func (r *Repo) Insert(ctx context.Context, p *profiles.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "[profiles.Insert] encode")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tableURL(), bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "[profiles.Insert] build request")
	}
	r.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := r.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "[profiles.Insert] request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("[profiles.Insert] status %d: %s", resp.StatusCode, snippet(resp.Body))
	}
	return nil
}

// SelectByUserID fetches the profile for userID, or ErrNotFound.
func (r *Repo) SelectByUserID(ctx context.Context, userID string) (*profiles.Profile, error) {
	u := fmt.Sprintf("%s?user_id=eq.%s&limit=1", r.tableURL(), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[profiles.SelectByUserID] build request")
	}
	r.setHeaders(req)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[profiles.SelectByUserID] request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errors.Errorf("[profiles.SelectByUserID] status %d: %s", resp.StatusCode, snippet(resp.Body))
	}

	var rows []profiles.Profile
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "[profiles.SelectByUserID] decode")
	}
	if len(rows) == 0 {
		return nil, profiles.ErrNotFound
	}
	return &rows[0], nil
}

func (r *Repo) tableURL() string {
	return r.baseURL + "/rest/v1/" + r.table
}

func (r *Repo) setHeaders(req *http.Request) {
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
}

func snippet(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 256))
	return string(raw)
}

var _ profiles.Repo = (*Repo)(nil)
