package session

import (
	"github.com/pkg/errors"
	zkeyring "github.com/zalando/go-keyring"
)

// ErrSecretNotFound is returned by Keyring implementations when no secret
// exists under the requested key.
var ErrSecretNotFound = errors.New("secret not found")

// Keyring is the encrypted key-value primitive the Store persists through.
// Implementations must write each value atomically: a concurrent Get observes
// either the previous or the new value, never a torn one.
type Keyring interface {
	Set(service, key, value string) error
	Get(service, key string) (string, error)
	Delete(service, key string) error
}

type systemKeyring struct{}

// SystemKeyring stores secrets in the operating system keychain
// (Keychain/libsecret/wincred).
func SystemKeyring() Keyring {
	return systemKeyring{}
}

func (systemKeyring) Set(service, key, value string) error {
	return zkeyring.Set(service, key, value)
}

func (systemKeyring) Get(service, key string) (string, error) {
	v, err := zkeyring.Get(service, key)
	if errors.Is(err, zkeyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	return v, err
}

func (systemKeyring) Delete(service, key string) error {
	err := zkeyring.Delete(service, key)
	if errors.Is(err, zkeyring.ErrNotFound) {
		return ErrSecretNotFound
	}
	return err
}
