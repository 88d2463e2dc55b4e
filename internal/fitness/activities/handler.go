package activities

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/trackfit/internal/cache"
	"github.com/2beens/trackfit/internal/calendar"
	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/telemetry/metrics"
	"github.com/2beens/trackfit/internal/telemetry/tracing"
	"github.com/2beens/trackfit/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=activities_mocks_test.go -package=activities_test

type activitiesRepo interface {
	Add(ctx context.Context, activity fitness.Activity) (*fitness.Activity, error)
	Get(ctx context.Context, id int64) (*fitness.Activity, error)
	ListAll(ctx context.Context, params ActivityParams) ([]fitness.Activity, error)
	Update(ctx context.Context, id int64, update fitness.ActivityUpdate) (*fitness.Activity, error)
	Delete(ctx context.Context, id int64) error
}

type DeleteActivityResponse struct {
	DeletedID int64 `json:"deletedId"`
}

type ListResponse struct {
	Activities []fitness.Activity `json:"activities"`
	Totals
}

type Handler struct {
	repo       activitiesRepo
	statsCache cache.Cache
	metrics    *metrics.Manager
}

func NewHandler(
	repo activitiesRepo,
	statsCache cache.Cache,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:       repo,
		statsCache: statsCache,
		metrics:    metricsManager,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var activity fitness.Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		log.Tracef("new activity, unmarshal json params: %s", err)
		http.Error(w, "add activity failed", http.StatusBadRequest)
		return
	}

	if activity.Type == "" {
		http.Error(w, "error, activity type empty", http.StatusBadRequest)
		return
	}
	if activity.Duration < 0 || activity.Distance < 0 {
		http.Error(w, "error, duration and distance must not be negative", http.StatusBadRequest)
		return
	}

	if activity.Date.IsZero() {
		activity.Date = calendar.DateOf(time.Now())
	}

	addedActivity, err := handler.repo.Add(ctx, activity)
	if err != nil {
		log.Errorf("failed to add new activity [%s] on [%s]: %s", activity.Type, activity.Date, err)
		http.Error(w, "error, failed to add new activity", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterActivities.Inc()
	handler.statsCache.Clear()

	addedJson, err := json.Marshal(addedActivity)
	if err != nil {
		log.Errorf("failed to marshal new activity: %s", err)
		http.Error(w, "error, failed to add new activity", http.StatusInternalServerError)
		return
	}

	log.Debugf("new activity added: %s", addedJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.get")
	defer span.End()

	id, err := activityIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	activity, err := handler.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrActivityNotFound) {
		log.Errorf("failed to get activity %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrActivityNotFound) {
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}

	activityJson, err := json.Marshal(activity)
	if err != nil {
		log.Errorf("failed to marshal activity: %s", err)
		http.Error(w, "failed to marshal activity", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, activityJson, http.StatusOK)
}

// HandleList returns the filtered history view, newest first, together
// with the totals over the filtered activities.
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.list")
	defer span.End()

	params := ActivityParams{
		Type:        r.URL.Query().Get("type"),
		NotesSearch: r.URL.Query().Get("notes"),
	}

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := calendar.ParseDate(fromStr)
		if err != nil {
			http.Error(w, "failed to parse from param", http.StatusBadRequest)
			return
		}
		params.From = &from
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := calendar.ParseDate(toStr)
		if err != nil {
			http.Error(w, "failed to parse to param", http.StatusBadRequest)
			return
		}
		params.To = &to
	}

	filtered, err := handler.repo.ListAll(ctx, params)
	if err != nil {
		log.Errorf("list activities error: %s", err)
		http.Error(w, "failed to get activities", http.StatusInternalServerError)
		return
	}

	SortByDateDesc(filtered)

	listResponse := ListResponse{
		Activities: filtered,
		Totals:     ComputeTotals(filtered),
	}

	listResponseJson, err := json.Marshal(listResponse)
	if err != nil {
		log.Errorf("marshal activities error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listResponseJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	id, err := activityIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var update fitness.ActivityUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Errorf("update activity, unmarshal json params: %s", err)
		http.Error(w, "update activity failed", http.StatusBadRequest)
		return
	}

	if update.Duration != nil && *update.Duration < 0 {
		http.Error(w, "error, duration must not be negative", http.StatusBadRequest)
		return
	}
	if update.Distance != nil && *update.Distance < 0 {
		http.Error(w, "error, distance must not be negative", http.StatusBadRequest)
		return
	}

	updatedActivity, err := handler.repo.Update(ctx, id, update)
	if err != nil && !errors.Is(err, ErrActivityNotFound) {
		log.Errorf("failed to update activity [%d]: %s", id, err)
		http.Error(w, "error, failed to update activity", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrActivityNotFound) {
		log.Debugf("activity %d not found", id)
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}

	handler.statsCache.Clear()

	updatedJson, err := json.Marshal(updatedActivity)
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	log.Debugf("activity updated: [%d] [%s]", updatedActivity.ID, updatedActivity.Type)
	pkg.WriteJSONResponseOK(w, string(updatedJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.delete")
	defer span.End()

	id, err := activityIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrActivityNotFound) {
		log.Errorf("failed to delete activity %d: %s", id, err)
		http.Error(w, "activity not deleted", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrActivityNotFound) {
		log.Debugf("activity %d not found", id)
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}

	handler.statsCache.Clear()

	deleteRespJson, err := json.Marshal(DeleteActivityResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func activityIDFromRequest(r *http.Request) (int64, error) {
	vars := mux.Vars(r)
	idStr := vars["id"]
	if idStr == "" {
		return 0, errors.New("error, id empty")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, errors.New("error, id NaN")
	}
	return id, nil
}
