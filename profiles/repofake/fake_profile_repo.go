// Package repofake provides an in-memory profiles.Repo for tests.
package repofake

import (
	"context"
	"sync"

	"github.com/peregrine-app/authcore/profiles"
)

// FakeProfileRepo stores profiles in memory, keyed by user ID.
type FakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*profiles.Profile

	InsertErr error
	SelectErr error
}

// NewFakeProfileRepo creates an empty fake.
func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{profiles: make(map[string]*profiles.Profile)}
}

func (f *FakeProfileRepo) Insert(ctx context.Context, p *profiles.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	cp := *p
	f.profiles[p.UserID] = &cp
	return nil
}

func (f *FakeProfileRepo) SelectByUserID(ctx context.Context, userID string) (*profiles.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SelectErr != nil {
		return nil, f.SelectErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, profiles.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Count returns the number of stored profiles.
func (f *FakeProfileRepo) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.profiles)
}

var _ profiles.Repo = (*FakeProfileRepo)(nil)
