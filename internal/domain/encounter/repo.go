package encounter

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists encounters with their prescription lines attached.
type Repository interface {
	Create(ctx context.Context, e *PatientEncounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientEncounter, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, limit, offset int) ([]*PatientEncounter, int, error)
}
