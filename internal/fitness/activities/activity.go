package activities

import (
	"sort"
	"strings"

	"github.com/2beens/trackfit/internal/calendar"
	"github.com/2beens/trackfit/internal/fitness"
)

// ActivityParams filter the activity collection; all criteria are
// optional and combined with a logical AND.
type ActivityParams struct {
	Type        string
	From        *calendar.Date
	To          *calendar.Date
	NotesSearch string
}

type Totals struct {
	Minutes  int     `json:"totalMinutes"`
	Distance float64 `json:"totalDistance"`
}

// Filter returns the activities matching all provided criteria:
// exact type, From <= date <= To, case-insensitive notes substring.
func Filter(all []fitness.Activity, params ActivityParams) []fitness.Activity {
	notesSearch := strings.ToLower(strings.TrimSpace(params.NotesSearch))

	filtered := make([]fitness.Activity, 0, len(all))
	for _, activity := range all {
		if params.Type != "" && activity.Type != params.Type {
			continue
		}
		if params.From != nil && activity.Date.Before(*params.From) {
			continue
		}
		if params.To != nil && activity.Date.After(*params.To) {
			continue
		}
		if notesSearch != "" && !strings.Contains(strings.ToLower(activity.Notes), notesSearch) {
			continue
		}
		filtered = append(filtered, activity)
	}
	return filtered
}

func ComputeTotals(activitiesList []fitness.Activity) Totals {
	var totals Totals
	for _, activity := range activitiesList {
		totals.Minutes += activity.Duration
		totals.Distance += activity.Distance
	}
	return totals
}

// SortByDateDesc orders newest first; a presentation concern, kept
// separate from filtering. Equal dates are broken by ID so the order
// is stable across calls.
func SortByDateDesc(activitiesList []fitness.Activity) {
	sort.Slice(activitiesList, func(i, j int) bool {
		if activitiesList[i].Date == activitiesList[j].Date {
			return activitiesList[i].ID > activitiesList[j].ID
		}
		return activitiesList[j].Date.Before(activitiesList[i].Date)
	})
}
