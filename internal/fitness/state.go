package fitness

import (
	"strings"

	"github.com/2beens/trackfit/internal/calendar"
)

const (
	UnitsKilometers = "km"
	UnitsMiles      = "mi"
)

// Activity is a single logged exercise session. Date, Type and ID are
// fixed at creation; duration, distance and notes can be edited later.
type Activity struct {
	ID       int64         `json:"id"`
	Date     calendar.Date `json:"date"`
	Type     string        `json:"type"`
	Duration int           `json:"duration"` // minutes
	Distance float64       `json:"distance"` // in profile units
	Notes    string        `json:"notes"`
}

// ActivityUpdate holds the editable activity fields; nil means keep as is.
type ActivityUpdate struct {
	Duration *int     `json:"duration,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

type Goals struct {
	WeeklyMinutes   int     `json:"weeklyMinutes"`
	MonthlyDistance float64 `json:"monthlyDistance"`
}

type Profile struct {
	Name              string   `json:"name"`
	Units             string   `json:"units"`
	Timezone          string   `json:"timezone"`
	DefaultActivities []string `json:"defaultActivities"`
}

type User struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type Auth struct {
	// CurrentUser is the email of the logged in account, empty when logged out
	CurrentUser string `json:"currentUser"`
	Users       []User `json:"users"`
}

// State is the whole persisted document: one JSON blob holding
// activities, goals, profile and the account list.
type State struct {
	Activities []Activity `json:"activities"`
	Goals      Goals      `json:"goals"`
	Profile    Profile    `json:"profile"`
	Auth       *Auth      `json:"auth"`
}

func NewDefaultState() *State {
	return &State{
		Activities: []Activity{},
		Goals: Goals{
			WeeklyMinutes:   150,
			MonthlyDistance: 40,
		},
		Profile: Profile{
			Units:             UnitsKilometers,
			DefaultActivities: []string{"Run", "Walk", "Bike", "Swim"},
		},
		Auth: &Auth{
			Users: []User{},
		},
	}
}

// EnsureDefaults patches holes in loaded documents. Old documents
// predate the auth section, those get an empty one instead of failing.
func (s *State) EnsureDefaults() {
	if s.Activities == nil {
		s.Activities = []Activity{}
	}
	if s.Auth == nil {
		s.Auth = &Auth{}
	}
	if s.Auth.Users == nil {
		s.Auth.Users = []User{}
	}
	if s.Profile.Units == "" {
		s.Profile.Units = UnitsKilometers
	}
}

// NormalizeEmail is how user accounts are keyed: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidUnits(units string) bool {
	return units == UnitsKilometers || units == UnitsMiles
}
