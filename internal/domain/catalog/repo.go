package catalog

import (
	"context"

	"github.com/google/uuid"
)

type LabTestTemplateRepository interface {
	Create(ctx context.Context, t *LabTestTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTestTemplate, error)
	List(ctx context.Context, limit, offset int) ([]*LabTestTemplate, int, error)
}

type ClinicalProcedureTemplateRepository interface {
	Create(ctx context.Context, t *ClinicalProcedureTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalProcedureTemplate, error)
	List(ctx context.Context, limit, offset int) ([]*ClinicalProcedureTemplate, int, error)
}

type TherapyTypeRepository interface {
	Create(ctx context.Context, t *TherapyType) error
	GetByID(ctx context.Context, id uuid.UUID) (*TherapyType, error)
	List(ctx context.Context, limit, offset int) ([]*TherapyType, int, error)
}

type HealthcareActivityRepository interface {
	Create(ctx context.Context, a *HealthcareActivity) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthcareActivity, error)
	List(ctx context.Context, limit, offset int) ([]*HealthcareActivity, int, error)
}

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	List(ctx context.Context, limit, offset int) ([]*Medication, int, error)
}

// ObservationTemplateRepository loads templates with their components and
// reference-range rules attached, in declared order.
type ObservationTemplateRepository interface {
	Create(ctx context.Context, t *ObservationTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*ObservationTemplate, error)
	List(ctx context.Context, limit, offset int) ([]*ObservationTemplate, int, error)
	// ComponentIdx returns the declared position of a child template within
	// a panel template, or 0 when the child is not a component of it.
	ComponentIdx(ctx context.Context, parentTemplateID, childTemplateID uuid.UUID) (int, error)
}
