package twin

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient or snapshot does not exist.
var ErrNotFound = errors.New("not found")

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type SnapshotRepository interface {
	Create(ctx context.Context, s *TwinSnapshot) error
	LatestByPatient(ctx context.Context, patientID uuid.UUID) (*TwinSnapshot, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TwinSnapshot, int, error)
}
