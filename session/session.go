// Package session holds the locally persisted proof of authentication and
// its encrypted store. The record is written and cleared as a whole; there is
// no partial session.
package session

import "strings"

// Session is the authoritative record of a signed-in identity.
// UserID and AccessToken together determine logged-in status. RefreshToken
// may be empty when the identity service does not issue one. CreatedAt is
// stamped by the store at save time (wall clock, epoch millis).
type Session struct {
	UserID         string `json:"user_id"`
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"email_confirmed"`
	CreatedAt      int64  `json:"created_at_epoch_millis"`
}

// LoggedIn reports whether the record represents a signed-in identity.
func (s Session) LoggedIn() bool {
	return strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.AccessToken) != ""
}
