package identity

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitplan/visitplan/internal/platform/geocode"
)

// Service owns patient and practitioner lifecycle: validation, defaults,
// address geocoding, and visit-history seeding for new patients.
type Service struct {
	patients      PatientRepository
	practitioners PractitionerRepository
	geocoder      geocode.Geocoder
	city          string
	logger        zerolog.Logger
}

func NewService(patients PatientRepository, practitioners PractitionerRepository, geocoder geocode.Geocoder, city string, logger zerolog.Logger) *Service {
	return &Service{
		patients:      patients,
		practitioners: practitioners,
		geocoder:      geocoder,
		city:          city,
		logger:        logger,
	}
}

// -- Patients --

// CreatePatient stores a new patient. Missing coordinates are resolved from
// the address; a failed or empty geocoding result leaves the patient
// unlocated rather than failing the create.
//
// firstVisit seeds the visit history so the planner surfaces the patient at
// the right time: a one-time patient gets it as the planned visit date, a
// recurring patient gets a back-dated last visit so the first interval
// elapses exactly then.
func (s *Service) CreatePatient(ctx context.Context, p *Patient, firstVisit *time.Time, now time.Time) error {
	if p.VisitDurationMinutes <= 0 {
		p.VisitDurationMinutes = DefaultVisitMinutes
	}

	if p.Latitude == nil || p.Longitude == nil {
		s.geocodePatient(ctx, p)
	}

	p.LastVisit = now
	if firstVisit != nil {
		if p.IsOneTime {
			planned := *firstVisit
			p.PlannedVisitDate = &planned
		} else {
			p.LastVisit = firstVisit.AddDate(0, 0, -p.IntervalDays)
		}
	}

	return s.patients.Create(ctx, p)
}

func (s *Service) geocodePatient(ctx context.Context, p *Patient) {
	if p.Address == "" {
		return
	}
	query := p.Address
	if s.city != "" {
		query += ", " + s.city
	}

	res, err := s.geocoder.Geocode(ctx, query)
	if err != nil {
		s.logger.Warn().Err(err).Int64("patient_id", p.ID).Msg("geocoding failed")
		return
	}
	if res == nil {
		p.Latitude = nil
		p.Longitude = nil
		return
	}
	lat, lon := res.Point.Lat, res.Point.Lon
	p.Latitude = &lat
	p.Longitude = &lon
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// UpdatePatient applies a partial edit. An address change without manual
// coordinates re-geocodes; when the new address resolves to nothing the
// stale coordinates are dropped.
func (s *Service) UpdatePatient(ctx context.Context, id int64, upd PatientUpdate) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	addressChanged := false
	if upd.Address != nil && *upd.Address != p.Address {
		p.Address = *upd.Address
		addressChanged = true
	}
	if upd.FirstName != nil {
		p.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = *upd.LastName
	}
	if upd.IntervalDays != nil {
		p.IntervalDays = *upd.IntervalDays
	}
	if upd.VisitDurationMinutes != nil {
		p.VisitDurationMinutes = *upd.VisitDurationMinutes
	}
	if upd.IsOneTime != nil {
		p.IsOneTime = *upd.IsOneTime
	}
	if upd.PrimaryPractitionerID != nil {
		p.PrimaryPractitionerID = upd.PrimaryPractitionerID
	}
	if upd.OverridePractitionerID != nil {
		p.OverridePractitionerID = upd.OverridePractitionerID
	}

	manualCoords := upd.Latitude != nil && upd.Longitude != nil
	if manualCoords {
		p.Latitude = upd.Latitude
		p.Longitude = upd.Longitude
	} else if addressChanged {
		p.Latitude = nil
		p.Longitude = nil
		s.geocodePatient(ctx, p)
	}

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	return s.patients.Delete(ctx, id)
}

// -- Practitioners --

func (s *Service) CreatePractitioner(ctx context.Context, p *Practitioner) error {
	if p.Color == "" {
		p.Color = DefaultPractitionerColor
	}
	if p.MaxDailyMinutes <= 0 {
		p.MaxDailyMinutes = DefaultMaxDailyMinutes
	}
	return s.practitioners.Create(ctx, p)
}

func (s *Service) GetPractitioner(ctx context.Context, id int64) (*Practitioner, error) {
	return s.practitioners.GetByID(ctx, id)
}

func (s *Service) ListPractitioners(ctx context.Context) ([]*Practitioner, error) {
	return s.practitioners.ListAll(ctx)
}

func (s *Service) UpdatePractitioner(ctx context.Context, id int64, upd PractitionerUpdate) (*Practitioner, error) {
	p, err := s.practitioners.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Role != nil {
		p.Role = *upd.Role
	}
	if upd.Color != nil {
		p.Color = *upd.Color
	}
	if upd.MaxDailyMinutes != nil {
		p.MaxDailyMinutes = *upd.MaxDailyMinutes
	}

	if err := s.practitioners.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePractitioner(ctx context.Context, id int64) error {
	return s.practitioners.Delete(ctx, id)
}
