package encounter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/catalog"
	"github.com/careflow/careflow/internal/domain/identity"
	"github.com/careflow/careflow/internal/domain/orders"
)

func strPtr(s string) *string { return &s }

// -- Mock Repositories --

type mockRepo struct {
	encounters map[uuid.UUID]*PatientEncounter
}

func newMockRepo() *mockRepo {
	return &mockRepo{encounters: make(map[uuid.UUID]*PatientEncounter)}
}

func (m *mockRepo) Create(_ context.Context, e *PatientEncounter) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = time.Now()
	m.encounters[e.ID] = e
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientEncounter, error) {
	e, ok := m.encounters[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return e, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	e, ok := m.encounters[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	e.Status = status
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*PatientEncounter, int, error) {
	var result []*PatientEncounter
	for _, e := range m.encounters {
		result = append(result, e)
	}
	return result, len(result), nil
}

// mockOrchestrator records what the encounter drives the order workflow to
// do, keyed the same way the real idempotence guard is.
type mockOrchestrator struct {
	created   []*orders.ServiceRequest
	activated []uuid.UUID
	fannedOut []uuid.UUID
	cancelled []uuid.UUID
}

func (m *mockOrchestrator) CreateServiceRequest(_ context.Context, sr *orders.ServiceRequest) error {
	sr.ID = uuid.New()
	sr.Status = orders.StatusDraft
	m.created = append(m.created, sr)
	return nil
}

func (m *mockOrchestrator) Activate(_ context.Context, id uuid.UUID) (*orders.ServiceRequest, error) {
	m.activated = append(m.activated, id)
	for _, sr := range m.created {
		if sr.ID == id {
			sr.Status = orders.StatusActive
			return sr, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockOrchestrator) FanOut(_ context.Context, id uuid.UUID) (*orders.FanOutResult, error) {
	m.fannedOut = append(m.fannedOut, id)
	return &orders.FanOutResult{}, nil
}

func (m *mockOrchestrator) ExistsForTemplate(_ context.Context, orderGroup, templateID uuid.UUID) (bool, error) {
	for _, sr := range m.created {
		if sr.OrderGroup == orderGroup && sr.TemplateID == templateID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrchestrator) CancelCascade(_ context.Context, orderGroup uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, sr := range m.created {
		if sr.OrderGroup == orderGroup && sr.Status != orders.StatusCancelled {
			sr.Status = orders.StatusCancelled
			ids = append(ids, sr.ID)
		}
	}
	m.cancelled = append(m.cancelled, ids...)
	return ids, nil
}

type mockPatients struct {
	patients map[uuid.UUID]*identity.Patient
}

func (m *mockPatients) GetPatient(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

type testFixture struct {
	svc      *Service
	repo     *mockRepo
	orch     *mockOrchestrator
	patients *mockPatients
}

func newTestFixture() *testFixture {
	f := &testFixture{
		repo:     newMockRepo(),
		orch:     &mockOrchestrator{},
		patients: &mockPatients{patients: make(map[uuid.UUID]*identity.Patient)},
	}
	f.svc = NewService(f.repo, f.orch, f.patients)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *testFixture) addPatient() uuid.UUID {
	id := uuid.New()
	f.patients.patients[id] = &identity.Patient{ID: id, Name: "John Doe", Sex: "Male"}
	return id
}

func TestCreateEncounter_DrugLineValidation(t *testing.T) {
	f := newTestFixture()
	e := &PatientEncounter{
		PatientID: f.addPatient(), PractitionerID: uuid.New(),
		Drugs: []DrugPrescription{{Dosage: strPtr("500mg")}},
	}
	err := f.svc.CreateEncounter(context.Background(), e)
	if !errors.Is(err, orders.ErrMissingMedicationReference) {
		t.Errorf("expected ErrMissingMedicationReference, got %v", err)
	}

	// item code alone is enough
	e.Drugs[0].ItemCode = strPtr("PARA-500")
	if err := f.svc.CreateEncounter(context.Background(), e); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSubmit_CreatesActivatesAndFansOut(t *testing.T) {
	f := newTestFixture()
	patientID := f.addPatient()
	medID := uuid.New()
	e := &PatientEncounter{
		PatientID: patientID, PractitionerID: uuid.New(),
		LabTests:     []LabPrescription{{TemplateID: uuid.New()}},
		Observations: []ObservationLine{{TemplateID: uuid.New()}},
		Drugs:        []DrugPrescription{{MedicationID: &medID, DosesPerDay: 3, PeriodDays: 5}},
	}
	if err := f.svc.CreateEncounter(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, err := f.svc.Submit(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 service requests, got %d", len(created))
	}
	if len(f.orch.activated) != 3 || len(f.orch.fannedOut) != 3 {
		t.Errorf("expected every request activated and fanned out, got %d/%d",
			len(f.orch.activated), len(f.orch.fannedOut))
	}
	if f.repo.encounters[e.ID].Status != StatusSubmitted {
		t.Errorf("expected Submitted, got %s", f.repo.encounters[e.ID].Status)
	}

	// drug quantity is doses per day times period days
	for _, sr := range f.orch.created {
		if sr.TemplateType == catalog.TemplateMedication && sr.Quantity != 15 {
			t.Errorf("expected drug quantity 15, got %d", sr.Quantity)
		}
	}
}

func TestSubmit_DrugLineCarriesPrescription(t *testing.T) {
	f := newTestFixture()
	medID := uuid.New()
	e := &PatientEncounter{
		PatientID: f.addPatient(), PractitionerID: uuid.New(),
		Drugs: []DrugPrescription{{
			MedicationID: &medID,
			Dosage:       strPtr("500mg"),
			DosageForm:   strPtr("Tablet"),
			DosesPerDay:  3, PeriodDays: 5,
			AsNeeded:        true,
			NumberOfRepeats: 2,
		}},
	}
	if err := f.svc.CreateEncounter(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), e.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.orch.created) != 1 {
		t.Fatalf("expected 1 service request, got %d", len(f.orch.created))
	}

	sr := f.orch.created[0]
	if sr.Dosage == nil || *sr.Dosage != "500mg" {
		t.Errorf("expected dosage on the order, got %v", sr.Dosage)
	}
	if sr.DosageForm == nil || *sr.DosageForm != "Tablet" {
		t.Errorf("expected dosage form on the order, got %v", sr.DosageForm)
	}
	if sr.Period == nil || *sr.Period != "5 Day(s)" {
		t.Errorf("expected rendered period on the order, got %v", sr.Period)
	}
	if !sr.AsNeeded {
		t.Error("expected as-needed flag on the order")
	}
	if sr.NumberOfRepeats != 2 {
		t.Errorf("expected 2 repeats on the order, got %d", sr.NumberOfRepeats)
	}
}

func TestSubmit_Idempotent(t *testing.T) {
	f := newTestFixture()
	e := &PatientEncounter{
		PatientID: f.addPatient(), PractitionerID: uuid.New(),
		LabTests: []LabPrescription{{TemplateID: uuid.New()}},
	}
	f.svc.CreateEncounter(context.Background(), e)

	first, err := f.svc.Submit(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.Submit(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 || len(second) != 0 {
		t.Errorf("expected re-submission to create nothing, got %d then %d", len(first), len(second))
	}
	if len(f.orch.created) != 1 {
		t.Errorf("expected exactly 1 request overall, got %d", len(f.orch.created))
	}
}

func TestCancel_Cascades(t *testing.T) {
	f := newTestFixture()
	e := &PatientEncounter{
		PatientID: f.addPatient(), PractitionerID: uuid.New(),
		LabTests: []LabPrescription{{TemplateID: uuid.New()}, {TemplateID: uuid.New()}},
	}
	f.svc.CreateEncounter(context.Background(), e)
	f.svc.Submit(context.Background(), e.ID)

	cancelled, err := f.svc.Cancel(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cancelled) != 2 {
		t.Errorf("expected 2 requests cancelled, got %d", len(cancelled))
	}
	if f.repo.encounters[e.ID].Status != StatusCancelled {
		t.Errorf("expected Cancelled, got %s", f.repo.encounters[e.ID].Status)
	}
}

func TestSubmit_CancelledEncounterRejected(t *testing.T) {
	f := newTestFixture()
	e := &PatientEncounter{PatientID: f.addPatient(), PractitionerID: uuid.New()}
	f.svc.CreateEncounter(context.Background(), e)
	f.svc.Cancel(context.Background(), e.ID)

	if _, err := f.svc.Submit(context.Background(), e.ID); err == nil {
		t.Error("expected error submitting a cancelled encounter")
	}
}

func TestTherapySessionsValidated(t *testing.T) {
	f := newTestFixture()
	e := &PatientEncounter{
		PatientID: f.addPatient(), PractitionerID: uuid.New(),
		Therapies: []TherapyLine{{TherapyTypeID: uuid.New(), Sessions: 0}},
	}
	if err := f.svc.CreateEncounter(context.Background(), e); err == nil {
		t.Error("expected error for zero sessions")
	}
}
