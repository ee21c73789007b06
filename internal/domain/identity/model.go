package identity

import (
	"time"

	"github.com/visitplan/visitplan/internal/platform/geo"
)

// Practitioner is a member of the practice team who drives visit rounds.
// MaxDailyMinutes is advisory capacity information for the planning UI; the
// planner never enforces it.
type Practitioner struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	Color           string `json:"color"`
	MaxDailyMinutes int    `json:"max_daily_minutes"`
}

const (
	DefaultPractitionerColor = "#33656E"
	DefaultMaxDailyMinutes   = 240
	DefaultVisitMinutes      = 30
)

// Patient is a home-visit patient. Name and address fields are encrypted at
// rest when a field cipher is configured on the repository.
type Patient struct {
	ID                   int64    `json:"id"`
	FirstName            string   `json:"first_name"`
	LastName             string   `json:"last_name"`
	Address              string   `json:"address"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	IntervalDays         int      `json:"interval_days"`
	VisitDurationMinutes int      `json:"visit_duration_minutes"`
	IsOneTime            bool     `json:"is_one_time"`

	LastVisit        time.Time  `json:"last_visit"`
	PlannedVisitDate *time.Time `json:"planned_visit_date,omitempty"`
	SnoozeUntil      *time.Time `json:"snooze_until,omitempty"`

	PrimaryPractitionerID  *int64 `json:"primary_practitioner_id,omitempty"`
	OverridePractitionerID *int64 `json:"override_practitioner_id,omitempty"`
}

// Coords returns the patient's position. The second return is false when
// the address was never geocoded.
func (p *Patient) Coords() (geo.Point, bool) {
	if p.Latitude == nil || p.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *p.Latitude, Lon: *p.Longitude}, true
}

// PatientUpdate carries a partial patient edit; nil fields stay untouched.
type PatientUpdate struct {
	FirstName              *string  `json:"first_name"`
	LastName               *string  `json:"last_name"`
	Address                *string  `json:"address"`
	IntervalDays           *int     `json:"interval_days"`
	VisitDurationMinutes   *int     `json:"visit_duration_minutes"`
	Latitude               *float64 `json:"latitude"`
	Longitude              *float64 `json:"longitude"`
	PrimaryPractitionerID  *int64   `json:"primary_practitioner_id"`
	OverridePractitionerID *int64   `json:"override_practitioner_id"`
	IsOneTime              *bool    `json:"is_one_time"`
}

// PractitionerUpdate carries a partial practitioner edit.
type PractitionerUpdate struct {
	Name            *string `json:"name"`
	Role            *string `json:"role"`
	Color           *string `json:"color"`
	MaxDailyMinutes *int    `json:"max_daily_minutes"`
}
