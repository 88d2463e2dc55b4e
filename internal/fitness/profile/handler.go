package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/telemetry/tracing"
	"github.com/2beens/trackfit/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=profile_mocks_test.go -package=profile_test

type profileRepo interface {
	Get(ctx context.Context) (fitness.Profile, error)
	Set(ctx context.Context, profile fitness.Profile) error
}

type Handler struct {
	repo profileRepo
}

func NewHandler(repo profileRepo) *Handler {
	return &Handler{repo: repo}
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.get")
	defer span.End()

	profile, err := handler.repo.Get(ctx)
	if err != nil {
		log.Errorf("failed to get profile: %s", err)
		http.Error(w, "failed to get profile", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("failed to marshal profile: %s", err)
		http.Error(w, "failed to marshal profile", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}

// HandleUpdate replaces the whole profile. Blank entries in the default
// activities list are dropped so the new-activity form never shows an
// empty choice.
func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var profile fitness.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		log.Tracef("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	profile.Name = strings.TrimSpace(profile.Name)
	if !fitness.ValidUnits(profile.Units) {
		http.Error(w, "error, units must be km or mi", http.StatusBadRequest)
		return
	}

	defaultActivities := make([]string, 0, len(profile.DefaultActivities))
	for _, activityType := range profile.DefaultActivities {
		if activityType = strings.TrimSpace(activityType); activityType != "" {
			defaultActivities = append(defaultActivities, activityType)
		}
	}
	profile.DefaultActivities = defaultActivities

	if err := handler.repo.Set(ctx, profile); err != nil {
		log.Errorf("failed to update profile: %s", err)
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("failed to marshal profile: %s", err)
		http.Error(w, "failed to marshal profile", http.StatusInternalServerError)
		return
	}

	log.Debugf("profile updated: %s", profileJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}
