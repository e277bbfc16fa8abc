package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service exposes the order template catalog. Templates are reference data:
// the orchestrator and the observation lifecycle read them, nothing in the
// order flow mutates them.
type Service struct {
	labTests   LabTestTemplateRepository
	procedures ClinicalProcedureTemplateRepository
	therapies  TherapyTypeRepository
	activities HealthcareActivityRepository
	meds       MedicationRepository
	obs        ObservationTemplateRepository
}

func NewService(
	labTests LabTestTemplateRepository,
	procedures ClinicalProcedureTemplateRepository,
	therapies TherapyTypeRepository,
	activities HealthcareActivityRepository,
	meds MedicationRepository,
	obs ObservationTemplateRepository,
) *Service {
	return &Service{
		labTests:   labTests,
		procedures: procedures,
		therapies:  therapies,
		activities: activities,
		meds:       meds,
		obs:        obs,
	}
}

var validDataTypes = map[DataType]bool{
	DataQuantity: true, DataNumeric: true, DataRange: true, DataRatio: true,
	DataText: true, DataSelect: true, DataBoolean: true,
}

func (s *Service) CreateLabTestTemplate(ctx context.Context, t *LabTestTemplate) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.labTests.Create(ctx, t)
}

func (s *Service) GetLabTestTemplate(ctx context.Context, id uuid.UUID) (*LabTestTemplate, error) {
	return s.labTests.GetByID(ctx, id)
}

func (s *Service) ListLabTestTemplates(ctx context.Context, limit, offset int) ([]*LabTestTemplate, int, error) {
	return s.labTests.List(ctx, limit, offset)
}

func (s *Service) CreateClinicalProcedureTemplate(ctx context.Context, t *ClinicalProcedureTemplate) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.procedures.Create(ctx, t)
}

func (s *Service) GetClinicalProcedureTemplate(ctx context.Context, id uuid.UUID) (*ClinicalProcedureTemplate, error) {
	return s.procedures.GetByID(ctx, id)
}

func (s *Service) ListClinicalProcedureTemplates(ctx context.Context, limit, offset int) ([]*ClinicalProcedureTemplate, int, error) {
	return s.procedures.List(ctx, limit, offset)
}

func (s *Service) CreateTherapyType(ctx context.Context, t *TherapyType) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.therapies.Create(ctx, t)
}

func (s *Service) GetTherapyType(ctx context.Context, id uuid.UUID) (*TherapyType, error) {
	return s.therapies.GetByID(ctx, id)
}

func (s *Service) ListTherapyTypes(ctx context.Context, limit, offset int) ([]*TherapyType, int, error) {
	return s.therapies.List(ctx, limit, offset)
}

func (s *Service) CreateHealthcareActivity(ctx context.Context, a *HealthcareActivity) error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.activities.Create(ctx, a)
}

func (s *Service) GetHealthcareActivity(ctx context.Context, id uuid.UUID) (*HealthcareActivity, error) {
	return s.activities.GetByID(ctx, id)
}

func (s *Service) ListHealthcareActivities(ctx context.Context, limit, offset int) ([]*HealthcareActivity, int, error) {
	return s.activities.List(ctx, limit, offset)
}

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.meds.Create(ctx, m)
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.meds.GetByID(ctx, id)
}

func (s *Service) ListMedications(ctx context.Context, limit, offset int) ([]*Medication, int, error) {
	return s.meds.List(ctx, limit, offset)
}

func (s *Service) CreateObservationTemplate(ctx context.Context, t *ObservationTemplate) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.DataType != "" && !validDataTypes[t.DataType] {
		return fmt.Errorf("invalid permitted data type: %s", t.DataType)
	}
	if t.HasComponent && len(t.Components) == 0 {
		return fmt.Errorf("template %s is marked has_component but declares no components", t.Name)
	}
	for _, rr := range t.ReferenceRanges {
		if rr.AppliesTo != "All" && rr.AppliesTo != "Male" && rr.AppliesTo != "Female" {
			return fmt.Errorf("invalid applies_to: %s", rr.AppliesTo)
		}
		if rr.Age != "All" && rr.Age != "Range" {
			return fmt.Errorf("invalid age selector: %s", rr.Age)
		}
	}
	return s.obs.Create(ctx, t)
}

func (s *Service) GetObservationTemplate(ctx context.Context, id uuid.UUID) (*ObservationTemplate, error) {
	return s.obs.GetByID(ctx, id)
}

func (s *Service) ListObservationTemplates(ctx context.Context, limit, offset int) ([]*ObservationTemplate, int, error) {
	return s.obs.List(ctx, limit, offset)
}

// ComponentIdx returns the declared position of childTemplateID within the
// panel parentTemplateID (0 when not a component).
func (s *Service) ComponentIdx(ctx context.Context, parentTemplateID, childTemplateID uuid.UUID) (int, error) {
	return s.obs.ComponentIdx(ctx, parentTemplateID, childTemplateID)
}
