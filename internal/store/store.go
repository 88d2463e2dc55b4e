package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/telemetry/tracing"
	"github.com/2beens/trackfit/pkg"

	log "github.com/sirupsen/logrus"
)

const (
	// json file name for the marshaled state document,
	// saved within the root path
	stateJsonFileName = "trackfit-state.json"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
)

// DiskStore owns the whole application state: activities, goals, profile
// and the account list. The state lives in memory and is written to disk
// as a single JSON document on every mutation, last write wins.
type DiskStore struct {
	rootPath string
	mutex    sync.RWMutex
	state    *fitness.State
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	state, err := loadState(rootPath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return &DiskStore{
		rootPath: rootPath,
		state:    state,
	}, nil
}

func loadState(rootPath string) (*fitness.State, error) {
	exists, err := pkg.PathExists(rootPath, true)
	if err != nil {
		return nil, fmt.Errorf("check root path %s: %w", rootPath, err)
	}
	if !exists {
		return nil, fmt.Errorf("root path [%s] does not exist", rootPath)
	}

	stateJsonPath := path.Join(rootPath, stateJsonFileName)
	log.Debugf("loading state from: %s", stateJsonPath)

	stateJsonExists, err := pkg.PathExists(stateJsonPath, false)
	if err != nil {
		return nil, fmt.Errorf("check state file existence: %w", err)
	}

	if !stateJsonExists {
		log.Debugln("state JSON does not exist, creating a fresh copy ...")
		state := fitness.NewDefaultState()
		if err := saveState(rootPath, state); err != nil {
			return nil, fmt.Errorf("fresh state created, but failed to save: %w", err)
		}
		return state, nil
	}

	stateJson, err := os.ReadFile(stateJsonPath)
	if err != nil {
		return nil, err
	}
	var state fitness.State
	if err := json.Unmarshal(stateJson, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	// older documents predate some sections, e.g. auth
	state.EnsureDefaults()

	return &state, nil
}

func saveState(rootPath string, state *fitness.State) error {
	stateJsonPath := path.Join(rootPath, stateJsonFileName)

	stateJson, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if err := os.WriteFile(stateJsonPath, stateJson, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// persist writes the whole document; callers must hold the write lock.
func (ds *DiskStore) persist() error {
	return saveState(ds.rootPath, ds.state)
}

// NewID returns a unix time in micro, matching the original convention
// of using the creation instant as the activity ID.
func NewID() int64 {
	return time.Now().UnixMicro()
}

func (ds *DiskStore) Activities(ctx context.Context) []fitness.Activity {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.activities")
	defer span.End()

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	activities := make([]fitness.Activity, len(ds.state.Activities))
	copy(activities, ds.state.Activities)
	return activities
}

func (ds *DiskStore) AddActivity(ctx context.Context, activity fitness.Activity) (_ *fitness.Activity, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.addActivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if activity.ID == 0 {
		activity.ID = NewID()
	}
	for ds.activityIndex(activity.ID) >= 0 {
		// two activities logged within the same microsecond
		activity.ID++
	}

	ds.state.Activities = append(ds.state.Activities, activity)
	if err := ds.persist(); err != nil {
		return nil, fmt.Errorf("activity added, but failed to save state: %w", err)
	}

	log.Debugf("disk store: activity [%d] added", activity.ID)

	return &activity, nil
}

func (ds *DiskStore) GetActivity(ctx context.Context, id int64) (*fitness.Activity, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.getActivity")
	defer span.End()

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	i := ds.activityIndex(id)
	if i < 0 {
		return nil, ErrActivityNotFound
	}
	activity := ds.state.Activities[i]
	return &activity, nil
}

// UpdateActivity mutates the editable fields of an activity in place.
// Date, type and ID are fixed at creation and cannot be changed here.
func (ds *DiskStore) UpdateActivity(ctx context.Context, id int64, update fitness.ActivityUpdate) (_ *fitness.Activity, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.updateActivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	i := ds.activityIndex(id)
	if i < 0 {
		return nil, ErrActivityNotFound
	}

	activity := &ds.state.Activities[i]
	if update.Duration != nil {
		activity.Duration = *update.Duration
	}
	if update.Distance != nil {
		activity.Distance = *update.Distance
	}
	if update.Notes != nil {
		activity.Notes = *update.Notes
	}

	if err := ds.persist(); err != nil {
		return nil, fmt.Errorf("activity updated, but failed to save state: %w", err)
	}

	updated := *activity
	return &updated, nil
}

func (ds *DiskStore) DeleteActivity(ctx context.Context, id int64) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.deleteActivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	i := ds.activityIndex(id)
	if i < 0 {
		return ErrActivityNotFound
	}

	ds.state.Activities = append(ds.state.Activities[:i], ds.state.Activities[i+1:]...)
	if err := ds.persist(); err != nil {
		return fmt.Errorf("activity deleted, but failed to save state: %w", err)
	}

	log.Debugf("disk store: activity [%d] deleted", id)

	return nil
}

// activityIndex returns the position of the activity or -1; callers must hold a lock.
func (ds *DiskStore) activityIndex(id int64) int {
	for i := range ds.state.Activities {
		if ds.state.Activities[i].ID == id {
			return i
		}
	}
	return -1
}

func (ds *DiskStore) Goals(ctx context.Context) fitness.Goals {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.goals")
	defer span.End()

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return ds.state.Goals
}

func (ds *DiskStore) SetGoals(ctx context.Context, goals fitness.Goals) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.setGoals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.state.Goals = goals
	return ds.persist()
}

func (ds *DiskStore) Profile(ctx context.Context) fitness.Profile {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.profile")
	defer span.End()

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return ds.state.Profile
}

func (ds *DiskStore) SetProfile(ctx context.Context, profile fitness.Profile) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.setProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.state.Profile = profile
	return ds.persist()
}

func (ds *DiskStore) FindUser(ctx context.Context, email string) (*fitness.User, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.findUser")
	defer span.End()

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	email = fitness.NormalizeEmail(email)
	for _, user := range ds.state.Auth.Users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// AddUser stores a new account, keyed by lower-cased email.
func (ds *DiskStore) AddUser(ctx context.Context, user fitness.User) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.addUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	user.Email = fitness.NormalizeEmail(user.Email)
	for _, u := range ds.state.Auth.Users {
		if u.Email == user.Email {
			return ErrUserExists
		}
	}

	ds.state.Auth.Users = append(ds.state.Auth.Users, user)
	if err := ds.persist(); err != nil {
		return fmt.Errorf("user added, but failed to save state: %w", err)
	}

	log.Debugf("disk store: user [%s] added", user.Email)

	return nil
}

func (ds *DiskStore) CurrentUser(ctx context.Context) string {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.currentUser")
	defer span.End()

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return ds.state.Auth.CurrentUser
}

// SetCurrentUser records the logged in account; empty email means logged out.
func (ds *DiskStore) SetCurrentUser(ctx context.Context, email string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.setCurrentUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.state.Auth.CurrentUser = fitness.NormalizeEmail(email)
	return ds.persist()
}
