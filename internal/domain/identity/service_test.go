package identity

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitplan/visitplan/internal/platform/geo"
	"github.com/visitplan/visitplan/internal/platform/geocode"
)

type mockPatientRepo struct {
	patients map[int64]*Patient
	nextID   int64
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[int64]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.patients[id]; !ok {
		return ErrNotFound
	}
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	all, _ := m.ListAll(context.Background())
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockPatientRepo) ListAll(_ context.Context) ([]*Patient, error) {
	var out []*Patient
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.patients[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPatientRepo) MigratePlaintext(_ context.Context) (int, error) { return 0, nil }

type mockPractitionerRepo struct {
	practitioners map[int64]*Practitioner
	nextID        int64
}

func newMockPractitionerRepo() *mockPractitionerRepo {
	return &mockPractitionerRepo{practitioners: make(map[int64]*Practitioner)}
}

func (m *mockPractitionerRepo) Create(_ context.Context, p *Practitioner) error {
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.practitioners[p.ID] = &cp
	return nil
}

func (m *mockPractitionerRepo) GetByID(_ context.Context, id int64) (*Practitioner, error) {
	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPractitionerRepo) Update(_ context.Context, p *Practitioner) error {
	if _, ok := m.practitioners[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.practitioners[p.ID] = &cp
	return nil
}

func (m *mockPractitionerRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.practitioners[id]; !ok {
		return ErrNotFound
	}
	delete(m.practitioners, id)
	return nil
}

func (m *mockPractitionerRepo) ListAll(_ context.Context) ([]*Practitioner, error) {
	var out []*Practitioner
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.practitioners[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type stubGeocoder struct {
	result *geocode.Result
	err    error
	calls  int
}

func (g *stubGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	g.calls++
	return g.result, g.err
}

func newTestService(geocoder geocode.Geocoder) (*Service, *mockPatientRepo, *mockPractitionerRepo) {
	patients := newMockPatientRepo()
	practitioners := newMockPractitionerRepo()
	svc := NewService(patients, practitioners, geocoder, "Würzburg, Germany", zerolog.Nop())
	return svc, patients, practitioners
}

func TestCreatePatientGeocodesAddress(t *testing.T) {
	g := &stubGeocoder{result: &geocode.Result{Point: geo.Point{Lat: 49.8, Lon: 9.9}}}
	svc, _, _ := newTestService(g)

	p := &Patient{LastName: "Schmidt", Address: "Musterstrasse 1"}
	if err := svc.CreatePatient(context.Background(), p, nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.calls != 1 {
		t.Errorf("expected 1 geocoder call, got %d", g.calls)
	}
	if p.Latitude == nil || *p.Latitude != 49.8 {
		t.Errorf("expected geocoded latitude, got %v", p.Latitude)
	}
}

func TestCreatePatientKeepsManualCoords(t *testing.T) {
	g := &stubGeocoder{result: &geocode.Result{Point: geo.Point{Lat: 1, Lon: 1}}}
	svc, _, _ := newTestService(g)

	lat, lon := 49.7, 9.9
	p := &Patient{LastName: "Schmidt", Address: "Musterstrasse 1", Latitude: &lat, Longitude: &lon}
	if err := svc.CreatePatient(context.Background(), p, nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.calls != 0 {
		t.Errorf("expected no geocoder call, got %d", g.calls)
	}
	if *p.Latitude != 49.7 {
		t.Errorf("manual coordinates overwritten: %v", *p.Latitude)
	}
}

func TestCreatePatientGeocodeFailureIsNotFatal(t *testing.T) {
	g := &stubGeocoder{err: context.DeadlineExceeded}
	svc, _, _ := newTestService(g)

	p := &Patient{LastName: "Schmidt", Address: "Musterstrasse 1"}
	if err := svc.CreatePatient(context.Background(), p, nil, time.Now()); err != nil {
		t.Fatalf("expected create to succeed despite geocode error, got %v", err)
	}
	if p.Latitude != nil {
		t.Error("expected patient to stay unlocated")
	}
}

func TestCreatePatientSeedsOneTime(t *testing.T) {
	svc, _, _ := newTestService(&stubGeocoder{})
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	first := now.AddDate(0, 0, 3)

	p := &Patient{LastName: "Schmidt", IsOneTime: true}
	if err := svc.CreatePatient(context.Background(), p, &first, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PlannedVisitDate == nil || !p.PlannedVisitDate.Equal(first) {
		t.Errorf("expected planned visit at first visit date, got %v", p.PlannedVisitDate)
	}
	if !p.LastVisit.Equal(now) {
		t.Errorf("expected last visit = now, got %v", p.LastVisit)
	}
}

func TestCreatePatientSeedsRecurring(t *testing.T) {
	svc, _, _ := newTestService(&stubGeocoder{})
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	first := now.AddDate(0, 0, 7)

	p := &Patient{LastName: "Schmidt", IntervalDays: 14}
	if err := svc.CreatePatient(context.Background(), p, &first, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Back-dated so the first interval elapses exactly on the first visit.
	want := first.AddDate(0, 0, -14)
	if !p.LastVisit.Equal(want) {
		t.Errorf("expected last visit %v, got %v", want, p.LastVisit)
	}
	if p.PlannedVisitDate != nil {
		t.Errorf("recurring patient should have no planned date, got %v", p.PlannedVisitDate)
	}
}

func TestCreatePatientDefaultVisitDuration(t *testing.T) {
	svc, _, _ := newTestService(&stubGeocoder{})
	p := &Patient{LastName: "Schmidt"}
	if err := svc.CreatePatient(context.Background(), p, nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.VisitDurationMinutes != DefaultVisitMinutes {
		t.Errorf("expected default visit duration, got %d", p.VisitDurationMinutes)
	}
}

func TestUpdatePatientAddressChangeRegeocode(t *testing.T) {
	g := &stubGeocoder{result: &geocode.Result{Point: geo.Point{Lat: 50.0, Lon: 10.0}}}
	svc, repo, _ := newTestService(g)

	lat, lon := 49.8, 9.9
	repo.Create(context.Background(), &Patient{LastName: "Schmidt", Address: "Alte Strasse 1", Latitude: &lat, Longitude: &lon})

	addr := "Neue Strasse 2"
	p, err := svc.UpdatePatient(context.Background(), 1, PatientUpdate{Address: &addr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.calls != 1 {
		t.Errorf("expected re-geocode on address change, got %d calls", g.calls)
	}
	if p.Latitude == nil || *p.Latitude != 50.0 {
		t.Errorf("expected new coordinates, got %v", p.Latitude)
	}
}

func TestUpdatePatientUnresolvableAddressClearsCoords(t *testing.T) {
	g := &stubGeocoder{result: nil}
	svc, repo, _ := newTestService(g)

	lat, lon := 49.8, 9.9
	repo.Create(context.Background(), &Patient{LastName: "Schmidt", Address: "Alte Strasse 1", Latitude: &lat, Longitude: &lon})

	addr := "Unbekannte Strasse 99"
	p, err := svc.UpdatePatient(context.Background(), 1, PatientUpdate{Address: &addr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Latitude != nil || p.Longitude != nil {
		t.Error("expected stale coordinates cleared for unresolvable address")
	}
}

func TestUpdatePatientManualCoordsSkipGeocode(t *testing.T) {
	g := &stubGeocoder{result: &geocode.Result{Point: geo.Point{Lat: 1, Lon: 1}}}
	svc, repo, _ := newTestService(g)
	repo.Create(context.Background(), &Patient{LastName: "Schmidt", Address: "Alte Strasse 1"})

	addr := "Neue Strasse 2"
	lat, lon := 49.75, 9.95
	p, err := svc.UpdatePatient(context.Background(), 1, PatientUpdate{Address: &addr, Latitude: &lat, Longitude: &lon})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.calls != 0 {
		t.Errorf("expected no geocoder call with manual coordinates, got %d", g.calls)
	}
	if *p.Latitude != 49.75 {
		t.Errorf("manual coordinates not applied: %v", *p.Latitude)
	}
}

func TestUpdatePatientNotFound(t *testing.T) {
	svc, _, _ := newTestService(&stubGeocoder{})
	if _, err := svc.UpdatePatient(context.Background(), 42, PatientUpdate{}); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreatePractitionerDefaults(t *testing.T) {
	svc, _, _ := newTestService(&stubGeocoder{})
	p := &Practitioner{Name: "Dr. Weber", Role: "Arzt"}
	if err := svc.CreatePractitioner(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Color != DefaultPractitionerColor {
		t.Errorf("expected default color, got %q", p.Color)
	}
	if p.MaxDailyMinutes != DefaultMaxDailyMinutes {
		t.Errorf("expected default max daily minutes, got %d", p.MaxDailyMinutes)
	}
}

func TestUpdatePractitionerPartial(t *testing.T) {
	svc, _, repo := newTestService(&stubGeocoder{})
	repo.Create(context.Background(), &Practitioner{Name: "Dr. Weber", Role: "Arzt", Color: "#112233", MaxDailyMinutes: 240})

	role := "VERAH"
	p, err := svc.UpdatePractitioner(context.Background(), 1, PractitionerUpdate{Role: &role})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Role != "VERAH" {
		t.Errorf("expected role updated, got %q", p.Role)
	}
	if p.Name != "Dr. Weber" || p.Color != "#112233" {
		t.Error("untouched fields changed")
	}
}
