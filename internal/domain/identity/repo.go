package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("identity: not found")

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	// ListAll returns every patient; the planner evaluates due-ness over the
	// full roster.
	ListAll(ctx context.Context) ([]*Patient, error)
	// MigratePlaintext re-encrypts stored text fields that predate
	// encryption. Returns the number of patients rewritten.
	MigratePlaintext(ctx context.Context) (int, error)
}

type PractitionerRepository interface {
	Create(ctx context.Context, p *Practitioner) error
	GetByID(ctx context.Context, id int64) (*Practitioner, error)
	Update(ctx context.Context, p *Practitioner) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]*Practitioner, error)
}
