package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visitplan/visitplan/internal/platform/phi"
)

// -- Patient Repository --

type patientRepoPG struct {
	pool   *pgxpool.Pool
	cipher phi.FieldCipher
}

// NewPatientRepo creates a patient repository. The cipher seals name and
// address fields before storage and opens them after retrieval; pass nil to
// store plaintext.
func NewPatientRepo(pool *pgxpool.Pool, cipher phi.FieldCipher) PatientRepository {
	return &patientRepoPG{pool: pool, cipher: cipher}
}

const patientCols = `id, first_name, last_name, address, latitude, longitude,
	interval_days, visit_duration_minutes, is_one_time,
	last_visit, planned_visit_date, snooze_until,
	primary_practitioner_id, override_practitioner_id`

func (r *patientRepoPG) sealFields(p *Patient) error {
	if r.cipher == nil {
		return nil
	}
	var err error
	if p.FirstName, err = r.cipher.Encrypt(p.FirstName); err != nil {
		return err
	}
	if p.LastName, err = r.cipher.Encrypt(p.LastName); err != nil {
		return err
	}
	if p.Address, err = r.cipher.Encrypt(p.Address); err != nil {
		return err
	}
	return nil
}

func (r *patientRepoPG) openFields(p *Patient) error {
	if r.cipher == nil {
		return nil
	}
	var err error
	if p.FirstName, err = r.cipher.Decrypt(p.FirstName); err != nil {
		return err
	}
	if p.LastName, err = r.cipher.Decrypt(p.LastName); err != nil {
		return err
	}
	if p.Address, err = r.cipher.Decrypt(p.Address); err != nil {
		return err
	}
	return nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	// Seal fields for storage, then restore the caller's plaintext.
	orig := *p
	if err := r.sealFields(p); err != nil {
		return fmt.Errorf("patient create: %w", err)
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO patient (
			first_name, last_name, address, latitude, longitude,
			interval_days, visit_duration_minutes, is_one_time,
			last_visit, planned_visit_date, snooze_until,
			primary_practitioner_id, override_practitioner_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id`,
		p.FirstName, p.LastName, p.Address, p.Latitude, p.Longitude,
		p.IntervalDays, p.VisitDurationMinutes, p.IsOneTime,
		p.LastVisit, p.PlannedVisitDate, p.SnoozeUntil,
		p.PrimaryPractitionerID, p.OverridePractitionerID,
	).Scan(&p.ID)

	id := p.ID
	*p = orig
	p.ID = id
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.openFields(p); err != nil {
		return nil, fmt.Errorf("patient get: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	orig := *p
	if err := r.sealFields(p); err != nil {
		return fmt.Errorf("patient update: %w", err)
	}
	defer func() { *p = orig }()

	tag, err := r.pool.Exec(ctx, `
		UPDATE patient SET
			first_name=$2, last_name=$3, address=$4, latitude=$5, longitude=$6,
			interval_days=$7, visit_duration_minutes=$8, is_one_time=$9,
			last_visit=$10, planned_visit_date=$11, snooze_until=$12,
			primary_practitioner_id=$13, override_practitioner_id=$14
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Address, p.Latitude, p.Longitude,
		p.IntervalDays, p.VisitDurationMinutes, p.IsOneTime,
		p.LastVisit, p.PlannedVisitDate, p.SnoozeUntil,
		p.PrimaryPractitionerID, p.OverridePractitionerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	patients, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *patientRepoPG) ListAll(ctx context.Context) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *patientRepoPG) collect(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		if err := r.openFields(p); err != nil {
			return nil, fmt.Errorf("patient list: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// MigratePlaintext rewrites patients whose stored text fields lack the
// ciphertext marker. Called once when the master password is first
// established.
func (r *patientRepoPG) MigratePlaintext(ctx context.Context) (int, error) {
	if r.cipher == nil {
		return 0, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, first_name, last_name, address FROM patient`)
	if err != nil {
		return 0, err
	}

	type rawPatient struct {
		id                   int64
		first, last, address string
	}
	var pending []rawPatient
	for rows.Next() {
		var rp rawPatient
		if err := rows.Scan(&rp.id, &rp.first, &rp.last, &rp.address); err != nil {
			rows.Close()
			return 0, err
		}
		if needsSealing(rp.first) || needsSealing(rp.last) || needsSealing(rp.address) {
			pending = append(pending, rp)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	migrated := 0
	for _, rp := range pending {
		first, err := sealIfPlain(r.cipher, rp.first)
		if err != nil {
			return migrated, fmt.Errorf("migrate patient %d: %w", rp.id, err)
		}
		last, err := sealIfPlain(r.cipher, rp.last)
		if err != nil {
			return migrated, fmt.Errorf("migrate patient %d: %w", rp.id, err)
		}
		address, err := sealIfPlain(r.cipher, rp.address)
		if err != nil {
			return migrated, fmt.Errorf("migrate patient %d: %w", rp.id, err)
		}

		if _, err := r.pool.Exec(ctx,
			`UPDATE patient SET first_name=$2, last_name=$3, address=$4 WHERE id=$1`,
			rp.id, first, last, address,
		); err != nil {
			return migrated, fmt.Errorf("migrate patient %d: %w", rp.id, err)
		}
		migrated++
	}
	return migrated, nil
}

func needsSealing(value string) bool {
	return value != "" && !phi.IsEncrypted(value)
}

func sealIfPlain(cipher phi.FieldCipher, value string) (string, error) {
	if !needsSealing(value) {
		return value, nil
	}
	return cipher.Encrypt(value)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	p := &Patient{}
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Address, &p.Latitude, &p.Longitude,
		&p.IntervalDays, &p.VisitDurationMinutes, &p.IsOneTime,
		&p.LastVisit, &p.PlannedVisitDate, &p.SnoozeUntil,
		&p.PrimaryPractitionerID, &p.OverridePractitionerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// -- Practitioner Repository --

type practitionerRepoPG struct {
	pool *pgxpool.Pool
}

func NewPractitionerRepo(pool *pgxpool.Pool) PractitionerRepository {
	return &practitionerRepoPG{pool: pool}
}

const practitionerCols = `id, name, role, color, max_daily_minutes`

func (r *practitionerRepoPG) Create(ctx context.Context, p *Practitioner) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO practitioner (name, role, color, max_daily_minutes)
		VALUES ($1,$2,$3,$4)
		RETURNING id`,
		p.Name, p.Role, p.Color, p.MaxDailyMinutes,
	).Scan(&p.ID)
}

func (r *practitionerRepoPG) GetByID(ctx context.Context, id int64) (*Practitioner, error) {
	p := &Practitioner{}
	err := r.pool.QueryRow(ctx, `SELECT `+practitionerCols+` FROM practitioner WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Role, &p.Color, &p.MaxDailyMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *practitionerRepoPG) Update(ctx context.Context, p *Practitioner) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE practitioner SET name=$2, role=$3, color=$4, max_daily_minutes=$5
		WHERE id = $1`,
		p.ID, p.Name, p.Role, p.Color, p.MaxDailyMinutes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *practitionerRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practitioner WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *practitionerRepoPG) ListAll(ctx context.Context) ([]*Practitioner, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+practitionerCols+` FROM practitioner ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var practitioners []*Practitioner
	for rows.Next() {
		p := &Practitioner{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Role, &p.Color, &p.MaxDailyMinutes); err != nil {
			return nil, err
		}
		practitioners = append(practitioners, p)
	}
	return practitioners, rows.Err()
}
