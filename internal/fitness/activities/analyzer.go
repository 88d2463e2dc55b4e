package activities

import (
	"context"

	"github.com/2beens/trackfit/internal/calendar"
	"github.com/2beens/trackfit/internal/fitness"
	"github.com/2beens/trackfit/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// WeeklySummary partitions the current and previous week's minutes,
// with this week's minutes additionally bucketed per weekday.
type WeeklySummary struct {
	ThisWeekMinutes int `json:"thisWeekMinutes"`
	LastWeekMinutes int `json:"lastWeekMinutes"`
	// VsLastWeek is thisWeekMinutes - lastWeekMinutes, the dashboard delta
	VsLastWeek int `json:"vsLastWeek"`
	// PerWeekdayMinutes holds this week's minutes, Monday first
	PerWeekdayMinutes [7]int `json:"perWeekdayMinutes"`
}

type GoalProgress struct {
	WeeklyMinutes   int     `json:"weeklyMinutes"`
	WeeklyGoal      int     `json:"weeklyGoal"`
	WeeklyPercent   float64 `json:"weeklyPercent"`
	MonthlyDistance float64 `json:"monthlyDistance"`
	MonthlyGoal     float64 `json:"monthlyGoal"`
	MonthlyPercent  float64 `json:"monthlyPercent"`
}

// Analyzer computes the dashboard reports from an activity snapshot and
// a caller-supplied reference date, so results are deterministic and
// testable with fixed dates.
type Analyzer struct {
	repo activitiesRepo
}

func NewAnalyzer(repo activitiesRepo) *Analyzer {
	return &Analyzer{
		repo: repo,
	}
}

func (a *Analyzer) WeeklySummary(ctx context.Context, now calendar.Date) (_ *WeeklySummary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.activities.weeklySummary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	all, err := a.repo.ListAll(ctx, ActivityParams{})
	if err != nil {
		return nil, err
	}

	weekStart := calendar.StartOfWeek(now)
	lastWeekStart := weekStart.AddDays(-7)

	summary := &WeeklySummary{}
	for _, activity := range all {
		if calendar.IsSameWeek(activity.Date, weekStart) {
			summary.ThisWeekMinutes += activity.Duration
			summary.PerWeekdayMinutes[calendar.WeekdayIndex(activity.Date)] += activity.Duration
		} else if calendar.IsSameWeek(activity.Date, lastWeekStart) {
			summary.LastWeekMinutes += activity.Duration
		}
	}
	summary.VsLastWeek = summary.ThisWeekMinutes - summary.LastWeekMinutes

	return summary, nil
}

func (a *Analyzer) MonthlyActivityCount(ctx context.Context, now calendar.Date) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.activities.monthlyActivityCount")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	all, err := a.repo.ListAll(ctx, ActivityParams{})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, activity := range all {
		if calendar.IsSameMonth(activity.Date, now) {
			count++
		}
	}
	return count, nil
}

// Streak counts consecutive covered calendar days walking back from now,
// stopping at the first day without a single activity. Two activities on
// the same date count as one covered day.
func (a *Analyzer) Streak(ctx context.Context, now calendar.Date) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.activities.streak")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	all, err := a.repo.ListAll(ctx, ActivityParams{})
	if err != nil {
		return 0, err
	}

	coveredDays := make(map[calendar.Date]bool, len(all))
	for _, activity := range all {
		coveredDays[activity.Date] = true
	}

	streak := 0
	for cursor := now; coveredDays[cursor]; cursor = cursor.AddDays(-1) {
		streak++
	}

	span.SetAttributes(attribute.Int("streak", streak))

	return streak, nil
}

// GoalProgress reports the current week's minutes and month's distance
// against the configured goals. Percent is capped at 100; a zero or
// unset goal yields percent 0 instead of a division by zero.
func (a *Analyzer) GoalProgress(ctx context.Context, goals fitness.Goals, now calendar.Date) (_ *GoalProgress, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.activities.goalProgress")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	all, err := a.repo.ListAll(ctx, ActivityParams{})
	if err != nil {
		return nil, err
	}

	weekStart := calendar.StartOfWeek(now)

	progress := &GoalProgress{
		WeeklyGoal:  goals.WeeklyMinutes,
		MonthlyGoal: goals.MonthlyDistance,
	}
	for _, activity := range all {
		if calendar.IsSameWeek(activity.Date, weekStart) {
			progress.WeeklyMinutes += activity.Duration
		}
		if calendar.IsSameMonth(activity.Date, now) {
			progress.MonthlyDistance += activity.Distance
		}
	}

	if goals.WeeklyMinutes > 0 {
		progress.WeeklyPercent = min(100, float64(progress.WeeklyMinutes)/float64(goals.WeeklyMinutes)*100)
	}
	if goals.MonthlyDistance > 0 {
		progress.MonthlyPercent = min(100, progress.MonthlyDistance/goals.MonthlyDistance*100)
	}

	return progress, nil
}
