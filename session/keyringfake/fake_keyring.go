// Package keyringfake provides an in-memory session.Keyring for tests.
package keyringfake

import (
	"sync"

	"github.com/peregrine-app/authcore/session"
)

// FakeKeyring stores secrets in memory. Failures can be injected per
// operation to exercise the store's degradation policy.
type FakeKeyring struct {
	mu      sync.Mutex
	secrets map[string]string

	SetErr    error
	GetErr    error
	DeleteErr error
}

// NewFakeKeyring creates an empty fake.
func NewFakeKeyring() *FakeKeyring {
	return &FakeKeyring{secrets: make(map[string]string)}
}

func (f *FakeKeyring) Set(service, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	f.secrets[service+"/"+key] = value
	return nil
}

func (f *FakeKeyring) Get(service, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return "", f.GetErr
	}
	v, ok := f.secrets[service+"/"+key]
	if !ok {
		return "", session.ErrSecretNotFound
	}
	return v, nil
}

func (f *FakeKeyring) Delete(service, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.secrets[service+"/"+key]; !ok {
		return session.ErrSecretNotFound
	}
	delete(f.secrets, service+"/"+key)
	return nil
}

// Raw returns the stored value under service/key, for assertions.
func (f *FakeKeyring) Raw(service, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.secrets[service+"/"+key]
	return v, ok
}

// Corrupt overwrites the stored value under service/key with garbage.
func (f *FakeKeyring) Corrupt(service, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[service+"/"+key] = "{not json"
}

var _ session.Keyring = (*FakeKeyring)(nil)
