package observation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, o *Observation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Observation, error)
	Update(ctx context.Context, o *Observation) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Observation, int, error)
	// ListByParent returns child observations of a panel root, ordered by
	// observation_idx.
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*Observation, error)
}
