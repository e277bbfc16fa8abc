package encounter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/catalog"
	"github.com/careflow/careflow/internal/domain/identity"
	"github.com/careflow/careflow/internal/domain/orders"
)

// Orchestrator is the order workflow the encounter drives.
type Orchestrator interface {
	CreateServiceRequest(ctx context.Context, sr *orders.ServiceRequest) error
	Activate(ctx context.Context, id uuid.UUID) (*orders.ServiceRequest, error)
	FanOut(ctx context.Context, id uuid.UUID) (*orders.FanOutResult, error)
	ExistsForTemplate(ctx context.Context, orderGroup, templateID uuid.UUID) (bool, error)
	CancelCascade(ctx context.Context, orderGroup uuid.UUID) ([]uuid.UUID, error)
}

// PatientDirectory names encounter titles.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// Service owns the encounter lifecycle. Submission is idempotent per
// template line, so a retried submit never duplicates orders.
type Service struct {
	repo     Repository
	orders   Orchestrator
	patients PatientDirectory
	now      func() time.Time
}

func NewService(repo Repository, orch Orchestrator, patients PatientDirectory) *Service {
	return &Service{repo: repo, orders: orch, patients: patients, now: time.Now}
}

// CreateEncounter validates the prescription lines and persists the
// encounter as Draft. Drug lines must carry a medication link or an item
// code; that is checked here, before any order exists.
func (s *Service) CreateEncounter(ctx context.Context, e *PatientEncounter) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient is required")
	}
	if e.PractitionerID == uuid.Nil {
		return fmt.Errorf("practitioner is required")
	}
	for i, drug := range e.Drugs {
		if drug.MedicationID == nil && (drug.ItemCode == nil || *drug.ItemCode == "") {
			return fmt.Errorf("%w: drug line %d", orders.ErrMissingMedicationReference, i+1)
		}
	}
	for i, therapy := range e.Therapies {
		if therapy.Sessions < 1 {
			return fmt.Errorf("therapy line %d: number of sessions should be at least 1", i+1)
		}
	}

	p, err := s.patients.GetPatient(ctx, e.PatientID)
	if err != nil {
		return fmt.Errorf("patient %s: %w", e.PatientID, err)
	}
	e.Status = StatusDraft
	if e.EncounterDate == nil {
		t := s.now()
		e.EncounterDate = &t
	}
	e.Title = fmt.Sprintf("%s - %s", p.Name, e.EncounterDate.Format("2006-01-02"))
	if len(e.Title) > 100 {
		e.Title = e.Title[:100]
	}
	return s.repo.Create(ctx, e)
}

// encounterLine is one prescribed item flattened for order creation. Drug
// lines additionally carry their prescription details so the medication
// request produced at fan-out preserves them.
type encounterLine struct {
	templateType catalog.TemplateType
	templateID   uuid.UUID
	priority     string
	quantity     int

	dosage     *string
	dosageForm *string
	period     *string
	asNeeded   bool
	repeats    int
}

func flattenLines(e *PatientEncounter) []encounterLine {
	var lines []encounterLine
	for _, lt := range e.LabTests {
		lines = append(lines, encounterLine{
			templateType: catalog.TemplateLabTest, templateID: lt.TemplateID,
			priority: deref(lt.Priority), quantity: 1,
		})
	}
	for _, proc := range e.Procedures {
		lines = append(lines, encounterLine{
			templateType: catalog.TemplateClinicalProcedure, templateID: proc.TemplateID,
			priority: deref(proc.Priority), quantity: 1,
		})
	}
	for _, th := range e.Therapies {
		lines = append(lines, encounterLine{
			templateType: catalog.TemplateTherapyType, templateID: th.TherapyTypeID,
			quantity: th.Sessions,
		})
	}
	for _, obs := range e.Observations {
		lines = append(lines, encounterLine{
			templateType: catalog.TemplateObservation, templateID: obs.TemplateID,
			quantity: 1,
		})
	}
	for _, drug := range e.Drugs {
		if drug.MedicationID == nil {
			// item-code-only drugs are dispensed outside the order flow
			continue
		}
		lines = append(lines, encounterLine{
			templateType: catalog.TemplateMedication, templateID: *drug.MedicationID,
			quantity:   drug.Quantity(),
			dosage:     drug.Dosage,
			dosageForm: drug.DosageForm,
			period:     drug.Period(),
			asNeeded:   drug.AsNeeded,
			repeats:    drug.NumberOfRepeats,
		})
	}
	return lines
}

// Submit creates one service request per prescribed line, activates it and
// fans it out. Lines that already hold a request in this order group are
// skipped, so re-submission is a no-op for them. Returns the ids of the
// requests created by this call.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == StatusCancelled {
		return nil, fmt.Errorf("encounter %s is cancelled", id)
	}

	var created []uuid.UUID
	for _, line := range flattenLines(e) {
		exists, err := s.orders.ExistsForTemplate(ctx, e.ID, line.templateID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		sr := &orders.ServiceRequest{
			OrderGroup:      e.ID,
			PatientID:       e.PatientID,
			PractitionerID:  e.PractitionerID,
			TemplateType:    line.templateType,
			TemplateID:      line.templateID,
			Priority:        line.priority,
			Quantity:        line.quantity,
			OccurrenceDate:  e.EncounterDate,
			Dosage:          line.dosage,
			DosageForm:      line.dosageForm,
			Period:          line.period,
			AsNeeded:        line.asNeeded,
			NumberOfRepeats: line.repeats,
		}
		if err := s.orders.CreateServiceRequest(ctx, sr); err != nil {
			return created, fmt.Errorf("line %s %s: %w", line.templateType, line.templateID, err)
		}
		if _, err := s.orders.Activate(ctx, sr.ID); err != nil {
			return created, err
		}
		if _, err := s.orders.FanOut(ctx, sr.ID); err != nil {
			return created, err
		}
		created = append(created, sr.ID)
	}

	if err := s.repo.UpdateStatus(ctx, e.ID, StatusSubmitted); err != nil {
		return created, err
	}
	return created, nil
}

// Cancel withdraws the encounter, cascading cancellation to every linked
// service request. A partial cascade failure still cancels the rest and is
// reported as an aggregate.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cancelled, cascadeErr := s.orders.CancelCascade(ctx, e.ID)
	if err := s.repo.UpdateStatus(ctx, e.ID, StatusCancelled); err != nil {
		return cancelled, err
	}
	return cancelled, cascadeErr
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PatientEncounter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*PatientEncounter, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
