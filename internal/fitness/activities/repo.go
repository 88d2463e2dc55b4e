package activities

import (
	"context"

	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/store"
)

// ErrActivityNotFound is what the handlers check against, regardless
// of the repo implementation behind them.
var ErrActivityNotFound = store.ErrActivityNotFound

// Repo reads and mutates the activity collection owned by the disk
// store. Filtering happens here, over a snapshot, so the store stays a
// plain document holder.
type Repo struct {
	store *store.DiskStore
}

func NewRepo(diskStore *store.DiskStore) *Repo {
	return &Repo{
		store: diskStore,
	}
}

func (r *Repo) Add(ctx context.Context, activity fitness.Activity) (*fitness.Activity, error) {
	return r.store.AddActivity(ctx, activity)
}

func (r *Repo) Get(ctx context.Context, id int64) (*fitness.Activity, error) {
	return r.store.GetActivity(ctx, id)
}

func (r *Repo) ListAll(ctx context.Context, params ActivityParams) ([]fitness.Activity, error) {
	return Filter(r.store.Activities(ctx), params), nil
}

func (r *Repo) Update(ctx context.Context, id int64, update fitness.ActivityUpdate) (*fitness.Activity, error) {
	return r.store.UpdateActivity(ctx, id, update)
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	return r.store.DeleteActivity(ctx, id)
}
