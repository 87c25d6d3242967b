// Package profiles defines the remote profile store collaborator. A profile
// row is bootstrap-created on a user's first verified sign-in; this package
// does not own the data, it only reaches it.
package profiles

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by SelectByUserID when no profile exists for the
// user.
var ErrNotFound = errors.New("profile not found")

// Profile is a per-user record in the remote store, keyed by UserID.
type Profile struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// Repo reads and writes remote profiles.
type Repo interface {
	Insert(ctx context.Context, p *Profile) error
	SelectByUserID(ctx context.Context, userID string) (*Profile, error)
}
