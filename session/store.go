package session

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRecentSessionMaxAge bounds HasRecentSession when callers pass no
	// override.
	DefaultRecentSessionMaxAge = 24 // hours

	sessionKey = "session"
	probeKey   = "probe"
)

// Store persists the Session through an encrypted Keyring backend. The whole
// record is stored as one document under one key, so updates and clears are
// atomic even though the read API is per-field.
//
// Failure policy: a backend that cannot be written at construction time is
// fatal. After that, individual read/write failures degrade to absent/no-op
// and are only logged; a single corrupted record must not cascade into
// crashes. Availability over correctness, on purpose.
type Store struct {
	ring    Keyring
	service string
	now     func() time.Time
	log     zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the wall clock (primarily for testing).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates a Store over ring, namespaced by service. It probes the
// backend with a write and returns an error if the backend is unusable; the
// process cannot run without secure storage.
func NewStore(ring Keyring, service string, options ...StoreOption) (*Store, error) {
	if ring == nil {
		return nil, errors.New("[NewStore] keyring is required")
	}
	if service == "" {
		return nil, errors.New("[NewStore] service name is required")
	}

	s := &Store{
		ring:    ring,
		service: service,
		now:     time.Now,
		log:     log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	if err := ring.Set(service, probeKey, "ok"); err != nil {
		return nil, errors.Wrap(err, "[NewStore] secure storage unavailable")
	}
	if err := ring.Delete(service, probeKey); err != nil && !errors.Is(err, ErrSecretNotFound) {
		return nil, errors.Wrap(err, "[NewStore] secure storage unavailable")
	}
	return s, nil
}

// Save upserts the whole Session, stamping CreatedAt with the current wall
// clock. It returns the record as persisted. Write failures are logged and
// swallowed.
func (s *Store) Save(sess Session) Session {
	sess.CreatedAt = s.now().UnixMilli()

	raw, err := json.Marshal(sess)
	if err != nil {
		s.log.Debug().Err(err).Msg("session store: encode failed")
		return sess
	}
	if err := s.ring.Set(s.service, sessionKey, string(raw)); err != nil {
		s.log.Debug().Err(err).Msg("session store: write failed")
	}
	return sess
}

// Clear removes the persisted Session. Idempotent; clearing an empty store is
// not an error.
func (s *Store) Clear() {
	if err := s.ring.Delete(s.service, sessionKey); err != nil && !errors.Is(err, ErrSecretNotFound) {
		s.log.Debug().Err(err).Msg("session store: clear failed")
	}
}

// load returns the stored Session, or false when nothing (readable) is
// stored.
func (s *Store) load() (Session, bool) {
	raw, err := s.ring.Get(s.service, sessionKey)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			s.log.Debug().Err(err).Msg("session store: read failed")
		}
		return Session{}, false
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.log.Debug().Err(err).Msg("session store: decode failed")
		return Session{}, false
	}
	return sess, true
}

// UserID returns the stored user ID, if any.
func (s *Store) UserID() (string, bool) {
	sess, ok := s.load()
	return sess.UserID, ok && sess.UserID != ""
}

// AccessToken returns the stored access token, if any.
func (s *Store) AccessToken() (string, bool) {
	sess, ok := s.load()
	return sess.AccessToken, ok && sess.AccessToken != ""
}

// RefreshToken returns the stored refresh token, if any.
func (s *Store) RefreshToken() (string, bool) {
	sess, ok := s.load()
	return sess.RefreshToken, ok && sess.RefreshToken != ""
}

// Email returns the stored email, if any.
func (s *Store) Email() (string, bool) {
	sess, ok := s.load()
	return sess.Email, ok && sess.Email != ""
}

// EmailConfirmed returns the stored confirmation flag; the second result is
// false when no session is stored.
func (s *Store) EmailConfirmed() (bool, bool) {
	sess, ok := s.load()
	return sess.EmailConfirmed, ok
}

// CreatedAt returns the save timestamp (epoch millis), if any.
func (s *Store) CreatedAt() (int64, bool) {
	sess, ok := s.load()
	return sess.CreatedAt, ok && sess.CreatedAt != 0
}

// Session returns the full stored record, if any.
func (s *Store) Session() (Session, bool) {
	return s.load()
}

// IsLoggedIn reports whether a user ID and access token are both present.
func (s *Store) IsLoggedIn() bool {
	sess, ok := s.load()
	return ok && sess.LoggedIn()
}

// HasRecentSession reports whether the user is logged in and the session was
// saved less than maxAgeHours ago. A session with no timestamp is never
// recent.
func (s *Store) HasRecentSession(maxAgeHours int) bool {
	if maxAgeHours <= 0 {
		maxAgeHours = DefaultRecentSessionMaxAge
	}
	sess, ok := s.load()
	if !ok || !sess.LoggedIn() || sess.CreatedAt == 0 {
		return false
	}
	age := s.now().UnixMilli() - sess.CreatedAt
	return age < int64(maxAgeHours)*time.Hour.Milliseconds()
}
