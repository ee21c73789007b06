package planning

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitplan/visitplan/internal/domain/identity"
	"github.com/visitplan/visitplan/internal/platform/geo"
	"github.com/visitplan/visitplan/internal/platform/routing"
)

// PracticeLocator yields the practice's home-base coordinates, the start and
// end point of every route.
type PracticeLocator interface {
	PracticePoint(ctx context.Context) geo.Point
}

// PlannedVisit is one stop of a route. DistanceKm is the straight-line
// distance from the practice and is nil for patients without coordinates
// (JSON has no representation for an infinite float). TravelMinutes is the
// estimated drive into this stop from the previous one.
type PlannedVisit struct {
	Patient       *identity.Patient `json:"patient"`
	DistanceKm    *float64          `json:"distance_km"`
	TravelMinutes int               `json:"travel_minutes"`
}

// RouteGroup is the ordered tour of one practitioner. Practitioner is nil
// for the trailing group of unassigned patients. TravelMinutes includes the
// return leg to the practice.
type RouteGroup struct {
	Practitioner  *identity.Practitioner `json:"practitioner"`
	Visits        []PlannedVisit         `json:"visits"`
	PatientCount  int                    `json:"patient_count"`
	TravelMinutes int                    `json:"travel_minutes"`
	VisitMinutes  int                    `json:"visit_minutes"`
}

// DayPlan is the full planning result for one day: per-practitioner route
// groups plus a flattened list of all visits in group order.
type DayPlan struct {
	Date          time.Time      `json:"date"`
	Groups        []RouteGroup   `json:"groups"`
	Visits        []PlannedVisit `json:"visits"`
	PatientCount  int            `json:"patient_count"`
	TravelMinutes int            `json:"travel_minutes"`
	VisitMinutes  int            `json:"visit_minutes"`
}

type Service struct {
	patients      identity.PatientRepository
	practitioners identity.PractitionerRepository
	practice      PracticeLocator
	logger        zerolog.Logger
}

func NewService(patients identity.PatientRepository, practitioners identity.PractitionerRepository, practice PracticeLocator, logger zerolog.Logger) *Service {
	return &Service{
		patients:      patients,
		practitioners: practitioners,
		practice:      practice,
		logger:        logger,
	}
}

// PlanForDay computes today's visit plan: every due patient, grouped by
// effective practitioner (unassigned patients form a trailing group), each
// group routed nearest-neighbor from the practice.
func (s *Service) PlanForDay(ctx context.Context, now time.Time) (*DayPlan, error) {
	patients, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	practitioners, err := s.practitioners.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	base := s.practice.PracticePoint(ctx)

	var due []*identity.Patient
	for _, p := range patients {
		if IsDue(p, now) {
			due = append(due, p)
		}
	}

	known := make(map[int64]bool, len(practitioners))
	for _, pr := range practitioners {
		known[pr.ID] = true
	}

	byPractitioner := make(map[int64][]*identity.Patient)
	var unassigned []*identity.Patient
	for _, p := range due {
		if id, ok := EffectivePractitionerID(p); ok && known[id] {
			byPractitioner[id] = append(byPractitioner[id], p)
		} else {
			unassigned = append(unassigned, p)
		}
	}

	plan := &DayPlan{Date: dateOf(now)}
	for _, pr := range practitioners {
		group := s.buildGroup(pr, byPractitioner[pr.ID], base)
		plan.Groups = append(plan.Groups, group)
		s.accumulate(plan, group)
	}
	if len(unassigned) > 0 {
		group := s.buildGroup(nil, unassigned, base)
		plan.Groups = append(plan.Groups, group)
		s.accumulate(plan, group)
	}

	s.logger.Debug().
		Int("due", len(due)).
		Int("groups", len(plan.Groups)).
		Int("travel_minutes", plan.TravelMinutes).
		Msg("day plan computed")
	return plan, nil
}

func (s *Service) buildGroup(pr *identity.Practitioner, patients []*identity.Patient, base geo.Point) RouteGroup {
	ordered := routing.Order(base, patients)
	legs := routing.Legs(base, ordered)

	group := RouteGroup{
		Practitioner: pr,
		Visits:       make([]PlannedVisit, 0, len(ordered)),
		PatientCount: len(ordered),
	}
	for i, p := range ordered {
		visit := PlannedVisit{Patient: p, TravelMinutes: legs[i].TravelMinutes}
		if d := geo.DistanceTo(base, p); !math.IsInf(d, 1) {
			visit.DistanceKm = &d
		}
		group.Visits = append(group.Visits, visit)
		group.TravelMinutes += legs[i].TravelMinutes
		group.VisitMinutes += p.VisitDurationMinutes
	}
	group.TravelMinutes += routing.ReturnMinutes(base, ordered)
	return group
}

func (s *Service) accumulate(plan *DayPlan, group RouteGroup) {
	plan.Visits = append(plan.Visits, group.Visits...)
	plan.PatientCount += group.PatientCount
	plan.TravelMinutes += group.TravelMinutes
	plan.VisitMinutes += group.VisitMinutes
}

// RegisterVisit records that a visit happened. One-time patients are removed
// for good; recurring patients restart their interval, and any planned date
// or one-off override is consumed.
func (s *Service) RegisterVisit(ctx context.Context, id int64, now time.Time) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.IsOneTime {
		return s.patients.Delete(ctx, id)
	}

	p.LastVisit = now
	p.PlannedVisitDate = nil
	p.OverridePractitionerID = nil
	return s.patients.Update(ctx, p)
}

// Schedule plans a visit for the given date (today when date is nil) and
// lifts any snooze.
func (s *Service) Schedule(ctx context.Context, id int64, date *time.Time, now time.Time) (*identity.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	when := now
	if date != nil {
		when = *date
	}
	p.PlannedVisitDate = &when
	p.SnoozeUntil = nil
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Unschedule takes a patient off today's plan: the planned date is cleared
// and the patient is snoozed until the start of the next calendar day, so
// the interval rule cannot pull them right back in.
func (s *Service) Unschedule(ctx context.Context, id int64, now time.Time) (*identity.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	snooze := startOfNextDay(now)
	p.PlannedVisitDate = nil
	p.SnoozeUntil = &snooze
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetOverride reassigns a patient. A non-permanent override lasts until the
// next registered visit; a permanent one rewrites the primary assignment and
// drops the override. A nil practitioner ID clears the respective field.
func (s *Service) SetOverride(ctx context.Context, id int64, practitionerID *int64, permanent bool) (*identity.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if permanent {
		p.PrimaryPractitionerID = practitionerID
		p.OverridePractitionerID = nil
	} else {
		p.OverridePractitionerID = practitionerID
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
