package activities

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/trackfit/internal/cache"
	"github.com/2beens/trackfit/internal/calendar"
	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/telemetry/tracing"
	"github.com/2beens/trackfit/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=stats_mocks_test.go -package=activities_test

type goalsRepo interface {
	Get(ctx context.Context) (fitness.Goals, error)
}

// DashboardResponse is everything the dashboard cards show: this week's
// minutes and weekday bars, the delta against last week, the number of
// activities this month and the current streak.
type DashboardResponse struct {
	WeeklySummary
	MonthActivities int `json:"monthActivities"`
	StreakDays      int `json:"streakDays"`
}

type StatsHandler struct {
	analyzer   *Analyzer
	goals      goalsRepo
	statsCache cache.Cache
}

func NewStatsHandler(
	repo activitiesRepo,
	goals goalsRepo,
	statsCache cache.Cache,
) *StatsHandler {
	return &StatsHandler{
		analyzer:   NewAnalyzer(repo),
		goals:      goals,
		statsCache: statsCache,
	}
}

func (handler *StatsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.stats.dashboard")
	defer span.End()

	now, err := referenceDateFromRequest(r)
	if err != nil {
		http.Error(w, "failed to parse date param", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("reference_date", now.String()))

	cacheKey := "dashboard|" + now.String()
	if cached, found := handler.statsCache.Get(cacheKey); found {
		pkg.WriteResponseBytes(w, pkg.ContentType.JSON, cached, http.StatusOK)
		return
	}

	weeklySummary, err := handler.analyzer.WeeklySummary(ctx, now)
	if err != nil {
		log.Errorf("failed to get weekly summary: %s", err)
		http.Error(w, "failed to get dashboard stats", http.StatusInternalServerError)
		return
	}

	monthActivities, err := handler.analyzer.MonthlyActivityCount(ctx, now)
	if err != nil {
		log.Errorf("failed to get monthly activity count: %s", err)
		http.Error(w, "failed to get dashboard stats", http.StatusInternalServerError)
		return
	}

	streakDays, err := handler.analyzer.Streak(ctx, now)
	if err != nil {
		log.Errorf("failed to get streak: %s", err)
		http.Error(w, "failed to get dashboard stats", http.StatusInternalServerError)
		return
	}

	dashboardJson, err := json.Marshal(DashboardResponse{
		WeeklySummary:   *weeklySummary,
		MonthActivities: monthActivities,
		StreakDays:      streakDays,
	})
	if err != nil {
		log.Errorf("failed to marshal dashboard response: %s", err)
		http.Error(w, "failed to marshal dashboard response", http.StatusInternalServerError)
		return
	}

	handler.statsCache.Set(cacheKey, dashboardJson)

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, dashboardJson, http.StatusOK)
}

func (handler *StatsHandler) HandleGoalProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.activities.stats.goalProgress")
	defer span.End()

	now, err := referenceDateFromRequest(r)
	if err != nil {
		http.Error(w, "failed to parse date param", http.StatusBadRequest)
		return
	}

	cacheKey := "goalprogress|" + now.String()
	if cached, found := handler.statsCache.Get(cacheKey); found {
		pkg.WriteResponseBytes(w, pkg.ContentType.JSON, cached, http.StatusOK)
		return
	}

	goals, err := handler.goals.Get(ctx)
	if err != nil {
		log.Errorf("failed to get goals: %s", err)
		http.Error(w, "failed to get goal progress", http.StatusInternalServerError)
		return
	}

	progress, err := handler.analyzer.GoalProgress(ctx, goals, now)
	if err != nil {
		log.Errorf("failed to get goal progress: %s", err)
		http.Error(w, "failed to get goal progress", http.StatusInternalServerError)
		return
	}

	progressJson, err := json.Marshal(progress)
	if err != nil {
		log.Errorf("failed to marshal goal progress response: %s", err)
		http.Error(w, "failed to marshal goal progress response", http.StatusInternalServerError)
		return
	}

	handler.statsCache.Set(cacheKey, progressJson)

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, progressJson, http.StatusOK)
}

// referenceDateFromRequest reads the optional date query param, falling
// back to the server's current date. Tests pass a fixed date.
func referenceDateFromRequest(r *http.Request) (calendar.Date, error) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		return calendar.DateOf(time.Now()), nil
	}
	return calendar.ParseDate(dateStr)
}
