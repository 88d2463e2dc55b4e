package profile

import (
	"context"

	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/store"
)

// Repo reads and writes the profile section of the state document.
type Repo struct {
	store *store.DiskStore
}

func NewRepo(diskStore *store.DiskStore) *Repo {
	return &Repo{store: diskStore}
}

func (r *Repo) Get(ctx context.Context) (fitness.Profile, error) {
	return r.store.Profile(ctx), nil
}

func (r *Repo) Set(ctx context.Context, profile fitness.Profile) error {
	return r.store.SetProfile(ctx, profile)
}
