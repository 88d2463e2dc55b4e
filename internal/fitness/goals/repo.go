package goals

import (
	"context"

	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/store"
)

// Repo reads and writes the goals section of the state document.
type Repo struct {
	store *store.DiskStore
}

func NewRepo(diskStore *store.DiskStore) *Repo {
	return &Repo{store: diskStore}
}

func (r *Repo) Get(ctx context.Context) (fitness.Goals, error) {
	return r.store.Goals(ctx), nil
}

func (r *Repo) Set(ctx context.Context, goals fitness.Goals) error {
	return r.store.SetGoals(ctx, goals)
}
