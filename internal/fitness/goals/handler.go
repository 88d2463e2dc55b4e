package goals

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/trackfit/internal/cache"
	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/telemetry/tracing"
	"github.com/2beens/trackfit/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=goals_mocks_test.go -package=goals_test

type goalsRepo interface {
	Get(ctx context.Context) (fitness.Goals, error)
	Set(ctx context.Context, goals fitness.Goals) error
}

type Handler struct {
	repo       goalsRepo
	statsCache cache.Cache
}

func NewHandler(repo goalsRepo, statsCache cache.Cache) *Handler {
	return &Handler{
		repo:       repo,
		statsCache: statsCache,
	}
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.get")
	defer span.End()

	goals, err := handler.repo.Get(ctx)
	if err != nil {
		log.Errorf("failed to get goals: %s", err)
		http.Error(w, "failed to get goals", http.StatusInternalServerError)
		return
	}

	goalsJson, err := json.Marshal(goals)
	if err != nil {
		log.Errorf("failed to marshal goals: %s", err)
		http.Error(w, "failed to marshal goals", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, goalsJson, http.StatusOK)
}

// HandleUpdate replaces both goals at once. Zero means the goal is
// unset and progress for it reads as zero percent.
func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var goals fitness.Goals
	if err := json.NewDecoder(r.Body).Decode(&goals); err != nil {
		log.Tracef("update goals, unmarshal json params: %s", err)
		http.Error(w, "update goals failed", http.StatusBadRequest)
		return
	}

	if goals.WeeklyMinutes < 0 || goals.MonthlyDistance < 0 {
		http.Error(w, "error, goals must not be negative", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Set(ctx, goals); err != nil {
		log.Errorf("failed to update goals: %s", err)
		http.Error(w, "failed to update goals", http.StatusInternalServerError)
		return
	}

	handler.statsCache.Clear()

	goalsJson, err := json.Marshal(goals)
	if err != nil {
		log.Errorf("failed to marshal goals: %s", err)
		http.Error(w, "failed to marshal goals", http.StatusInternalServerError)
		return
	}

	log.Debugf("goals updated: %s", goalsJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, goalsJson, http.StatusOK)
}
