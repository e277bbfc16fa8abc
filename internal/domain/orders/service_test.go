package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/config"
	"github.com/careflow/careflow/internal/domain/catalog"
	"github.com/careflow/careflow/internal/domain/identity"
	"github.com/careflow/careflow/internal/domain/observation"
	"github.com/careflow/careflow/internal/platform/locker"
)

func strPtr(s string) *string { return &s }

// -- Mock Repositories --

type mockSRRepo struct {
	srs     map[uuid.UUID]*ServiceRequest
	failIDs map[uuid.UUID]bool // Update fails for these ids
}

func newMockSRRepo() *mockSRRepo {
	return &mockSRRepo{srs: make(map[uuid.UUID]*ServiceRequest), failIDs: make(map[uuid.UUID]bool)}
}

func (m *mockSRRepo) Create(_ context.Context, sr *ServiceRequest) error {
	sr.ID = uuid.New()
	sr.CreatedAt = time.Now()
	sr.UpdatedAt = time.Now()
	m.srs[sr.ID] = sr
	return nil
}

func (m *mockSRRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceRequest, error) {
	sr, ok := m.srs[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *sr
	return &cp, nil
}

func (m *mockSRRepo) Update(_ context.Context, sr *ServiceRequest) error {
	if m.failIDs[sr.ID] {
		return fmt.Errorf("storage unavailable")
	}
	m.srs[sr.ID] = sr
	return nil
}

func (m *mockSRRepo) List(_ context.Context, limit, offset int) ([]*ServiceRequest, int, error) {
	var result []*ServiceRequest
	for _, sr := range m.srs {
		result = append(result, sr)
	}
	return result, len(result), nil
}

func (m *mockSRRepo) ListByOrderGroup(_ context.Context, orderGroup uuid.UUID) ([]*ServiceRequest, error) {
	var result []*ServiceRequest
	for _, sr := range m.srs {
		if sr.OrderGroup == orderGroup {
			cp := *sr
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *mockSRRepo) ExistsByOrderGroupAndTemplate(_ context.Context, orderGroup, templateID uuid.UUID) (bool, error) {
	for _, sr := range m.srs {
		if sr.OrderGroup == orderGroup && sr.TemplateID == templateID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSRRepo) ListActiveRepeating(_ context.Context, tt catalog.TemplateType) ([]*ServiceRequest, error) {
	var result []*ServiceRequest
	for _, sr := range m.srs {
		if sr.TemplateType == tt && sr.Status == StatusActive && sr.RepeatInEvery > 0 {
			cp := *sr
			result = append(result, &cp)
		}
	}
	return result, nil
}

type mockActivityRepo struct {
	labTests    []*LabTest
	procedures  []*ClinicalProcedure
	sessions    []*TherapySession
	tasks       []*NursingTask
	medRequests []*MedicationRequest
	collections []*SampleCollection
}

func (m *mockActivityRepo) CreateLabTest(_ context.Context, lt *LabTest) error {
	lt.ID = uuid.New()
	m.labTests = append(m.labTests, lt)
	return nil
}

func (m *mockActivityRepo) CreateClinicalProcedure(_ context.Context, cp *ClinicalProcedure) error {
	cp.ID = uuid.New()
	m.procedures = append(m.procedures, cp)
	return nil
}

func (m *mockActivityRepo) CreateTherapySession(_ context.Context, ts *TherapySession) error {
	ts.ID = uuid.New()
	m.sessions = append(m.sessions, ts)
	return nil
}

func (m *mockActivityRepo) CreateNursingTask(_ context.Context, nt *NursingTask) error {
	nt.ID = uuid.New()
	m.tasks = append(m.tasks, nt)
	return nil
}

func (m *mockActivityRepo) CreateMedicationRequest(_ context.Context, mr *MedicationRequest) error {
	mr.ID = uuid.New()
	m.medRequests = append(m.medRequests, mr)
	return nil
}

func (m *mockActivityRepo) CreateSampleCollection(_ context.Context, sc *SampleCollection) error {
	sc.ID = uuid.New()
	m.collections = append(m.collections, sc)
	return nil
}

func (m *mockActivityRepo) ListNursingTasksByRequest(_ context.Context, id uuid.UUID) ([]*NursingTask, error) {
	var result []*NursingTask
	for _, nt := range m.tasks {
		if nt.ServiceRequestID == id {
			result = append(result, nt)
		}
	}
	return result, nil
}

func (m *mockActivityRepo) CompleteOpenNursingTasks(_ context.Context, id uuid.UUID) (int, error) {
	n := 0
	for _, nt := range m.tasks {
		if nt.ServiceRequestID == id && nt.Status != TaskStatusCompleted {
			nt.Status = TaskStatusCompleted
			n++
		}
	}
	return n, nil
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

func (m *mockPatients) GetAge(ctx context.Context, id uuid.UUID, asOf time.Time) (identity.Age, error) {
	p, err := m.GetPatient(ctx, id)
	if err != nil {
		return identity.Age{}, err
	}
	return p.AgeAt(asOf)
}

type mockCatalog struct {
	labTests   map[uuid.UUID]*catalog.LabTestTemplate
	procedures map[uuid.UUID]*catalog.ClinicalProcedureTemplate
	therapies  map[uuid.UUID]*catalog.TherapyType
	activities map[uuid.UUID]*catalog.HealthcareActivity
	meds       map[uuid.UUID]*catalog.Medication
	obs        map[uuid.UUID]*catalog.ObservationTemplate
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		labTests:   make(map[uuid.UUID]*catalog.LabTestTemplate),
		procedures: make(map[uuid.UUID]*catalog.ClinicalProcedureTemplate),
		therapies:  make(map[uuid.UUID]*catalog.TherapyType),
		activities: make(map[uuid.UUID]*catalog.HealthcareActivity),
		meds:       make(map[uuid.UUID]*catalog.Medication),
		obs:        make(map[uuid.UUID]*catalog.ObservationTemplate),
	}
}

func (m *mockCatalog) GetLabTestTemplate(_ context.Context, id uuid.UUID) (*catalog.LabTestTemplate, error) {
	t, ok := m.labTests[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockCatalog) GetClinicalProcedureTemplate(_ context.Context, id uuid.UUID) (*catalog.ClinicalProcedureTemplate, error) {
	t, ok := m.procedures[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockCatalog) GetTherapyType(_ context.Context, id uuid.UUID) (*catalog.TherapyType, error) {
	t, ok := m.therapies[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockCatalog) GetHealthcareActivity(_ context.Context, id uuid.UUID) (*catalog.HealthcareActivity, error) {
	t, ok := m.activities[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockCatalog) GetMedication(_ context.Context, id uuid.UUID) (*catalog.Medication, error) {
	t, ok := m.meds[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockCatalog) GetObservationTemplate(_ context.Context, id uuid.UUID) (*catalog.ObservationTemplate, error) {
	t, ok := m.obs[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

type mockObsWriter struct {
	created []observation.AddObservationInput
}

func (m *mockObsWriter) AddObservation(_ context.Context, in observation.AddObservationInput) (*observation.Observation, error) {
	m.created = append(m.created, in)
	return &observation.Observation{ID: uuid.New(), PatientID: in.PatientID, TemplateID: in.TemplateID}, nil
}

type testFixture struct {
	svc        *Service
	srRepo     *mockSRRepo
	activities *mockActivityRepo
	patients   *mockPatients
	catalog    *mockCatalog
	obsWriter  *mockObsWriter
	now        time.Time
}

func newTestFixture(cfg config.Clinical) *testFixture {
	f := &testFixture{
		srRepo:     newMockSRRepo(),
		activities: &mockActivityRepo{},
		patients:   &mockPatients{patients: make(map[uuid.UUID]*identity.Patient)},
		catalog:    newMockCatalog(),
		obsWriter:  &mockObsWriter{},
		now:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.srRepo, f.activities, f.patients, f.catalog, f.obsWriter,
		locker.NewMemoryLocker(), cfg, zerolog.New(io.Discard))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *testFixture) addPatient() uuid.UUID {
	id := uuid.New()
	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	f.patients.patients[id] = &identity.Patient{ID: id, Name: "Jane Roe", Sex: "Female", DOB: &dob}
	return id
}

func (f *testFixture) addLabTemplate() uuid.UUID {
	id := uuid.New()
	f.catalog.labTests[id] = &catalog.LabTestTemplate{
		ID: id, Name: "CBC", ItemCode: strPtr("CBC-001"), Department: strPtr("Pathology"),
	}
	return id
}

func TestCreateServiceRequest_Defaults(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	templateID := f.addLabTemplate()

	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
	}
	if err := f.svc.CreateServiceRequest(context.Background(), sr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Status != StatusDraft {
		t.Errorf("expected Draft, got %s", sr.Status)
	}
	if sr.Intent != "Original Order" {
		t.Errorf("expected default intent, got %s", sr.Intent)
	}
	if sr.Priority != "Routine" {
		t.Errorf("expected default priority, got %s", sr.Priority)
	}
	if sr.Quantity != 1 {
		t.Errorf("expected quantity 1, got %d", sr.Quantity)
	}
	if sr.BillingStatus != BillingPending {
		t.Errorf("expected Pending, got %s", sr.BillingStatus)
	}
	if sr.ItemCode == nil || *sr.ItemCode != "CBC-001" {
		t.Errorf("expected item code copied from template, got %v", sr.ItemCode)
	}
	if sr.Title != "Jane Roe - CBC" {
		t.Errorf("expected title from patient and template, got %q", sr.Title)
	}
}

func TestCreateServiceRequest_MissingTemplate(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	sr := &ServiceRequest{OrderGroup: uuid.New(), PatientID: f.addPatient()}
	err := f.svc.CreateServiceRequest(context.Background(), sr)
	if !errors.Is(err, ErrMissingTemplateReference) {
		t.Errorf("expected ErrMissingTemplateReference, got %v", err)
	}
}

func TestCreateServiceRequest_AmendmentReplacesPrior(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	templateID := f.addLabTemplate()

	prior := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
	}
	if err := f.svc.CreateServiceRequest(context.Background(), prior); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Activate(context.Background(), prior.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amended := &ServiceRequest{
		OrderGroup: prior.OrderGroup, PatientID: patientID, PractitionerID: prior.PractitionerID,
		TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
		AmendedFrom: &prior.ID,
	}
	if err := f.svc.CreateServiceRequest(context.Background(), amended); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.srRepo.srs[prior.ID].Status != StatusReplaced {
		t.Errorf("expected prior request Replaced, got %s", f.srRepo.srs[prior.ID].Status)
	}
}

func TestSetStatus_ReplacedNeverReactivated(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	templateID := f.addLabTemplate()
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)
	f.srRepo.srs[sr.ID].Status = StatusReplaced

	if _, err := f.svc.Activate(context.Background(), sr.ID); err == nil {
		t.Error("expected error activating a Replaced request")
	}
}

func TestFanOut_LabTest(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	templateID := f.addLabTemplate()
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)
	f.svc.Activate(context.Background(), sr.ID)

	result, err := f.svc.FanOut(context.Background(), sr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LabTest == nil {
		t.Fatal("expected a lab test document")
	}
	if result.LabTest.PatientName != "Jane Roe" || result.LabTest.PatientSex != "Female" {
		t.Error("expected patient demographic snapshot on lab test")
	}
	if result.LabTest.RequestingDept == nil || *result.LabTest.RequestingDept != "Pathology" {
		t.Errorf("expected department copied, got %v", result.LabTest.RequestingDept)
	}
	if f.srRepo.srs[sr.ID].Status != StatusScheduled {
		t.Errorf("expected Scheduled after fan-out, got %s", f.srRepo.srs[sr.ID].Status)
	}
}

func TestFanOut_NursingTask(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	activityID := uuid.New()
	f.catalog.activities[activityID] = &catalog.HealthcareActivity{
		ID: activityID, Name: "Vitals Check", Description: strPtr("Check vitals q4h"), TaskKind: strPtr("Vital Signs"),
	}
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateHealthcareActivity, TemplateID: activityID,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)

	result, err := f.svc.FanOut(context.Background(), sr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nt := result.NursingTask
	if nt == nil {
		t.Fatal("expected a nursing task")
	}
	if !nt.RequestedStartTime.Equal(f.now) {
		t.Errorf("expected requested start = now, got %v", nt.RequestedStartTime)
	}
	if nt.Description == nil || *nt.Description != "Check vitals q4h" {
		t.Errorf("expected description copied from activity, got %v", nt.Description)
	}
	if nt.TaskKind == nil || *nt.TaskKind != "Vital Signs" {
		t.Errorf("expected task kind copied from activity, got %v", nt.TaskKind)
	}
}

func TestFanOut_MedicationCarriesPrescription(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	medID := uuid.New()
	f.catalog.meds[medID] = &catalog.Medication{
		ID: medID, Name: "Paracetamol", Description: strPtr("Analgesic"),
	}
	occurrence := f.now.Add(24 * time.Hour)
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateMedication, TemplateID: medID,
		Quantity:        15,
		Dosage:          strPtr("500mg"),
		DosageForm:      strPtr("Tablet"),
		Period:          strPtr("5 Day(s)"),
		AsNeeded:        true,
		NumberOfRepeats: 2,
		OccurrenceDate:  &occurrence,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)

	if _, err := f.svc.FanOut(context.Background(), sr.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.activities.medRequests) != 1 {
		t.Fatalf("expected 1 medication request, got %d", len(f.activities.medRequests))
	}
	mr := f.activities.medRequests[0]
	if mr.Dosage == nil || *mr.Dosage != "500mg" {
		t.Errorf("expected dosage copied from the order, got %v", mr.Dosage)
	}
	if mr.DosageForm == nil || *mr.DosageForm != "Tablet" {
		t.Errorf("expected dosage form copied, got %v", mr.DosageForm)
	}
	if mr.Period == nil || *mr.Period != "5 Day(s)" {
		t.Errorf("expected period copied, got %v", mr.Period)
	}
	if !mr.AsNeeded {
		t.Error("expected as-needed flag copied")
	}
	if mr.NumberOfRepeats != 2 {
		t.Errorf("expected 2 repeats, got %d", mr.NumberOfRepeats)
	}
	if mr.Quantity != 15 {
		t.Errorf("expected quantity 15, got %d", mr.Quantity)
	}
	if mr.ExpectedDate == nil || !mr.ExpectedDate.Equal(occurrence) {
		t.Errorf("expected expected_date from occurrence, got %v", mr.ExpectedDate)
	}
	if mr.Description == nil || *mr.Description != "Analgesic" {
		t.Errorf("expected description from the medication, got %v", mr.Description)
	}
}

func TestFanOut_ObservationPanelChildren(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	leafA, leafB := uuid.New(), uuid.New()
	panelID := uuid.New()
	f.catalog.obs[panelID] = &catalog.ObservationTemplate{
		ID: panelID, Name: "Lipid Panel", HasComponent: true,
		Components: []catalog.ObservationComponent{
			{TemplateID: leafA, Idx: 1},
			{TemplateID: leafB, Idx: 2},
		},
	}
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateObservation, TemplateID: panelID,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)

	result, err := f.svc.FanOut(context.Background(), sr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ObservationIDs) != 3 {
		t.Fatalf("expected root + 2 children, got %d", len(result.ObservationIDs))
	}
	if len(f.obsWriter.created) != 3 {
		t.Fatalf("expected 3 observations created, got %d", len(f.obsWriter.created))
	}
	root := f.obsWriter.created[0]
	if root.ParentID != nil {
		t.Error("root observation must have no parent")
	}
	for _, child := range f.obsWriter.created[1:] {
		if child.ParentID == nil {
			t.Error("child observation must reference the root")
		}
	}
}

func TestFanOut_PaymentGate(t *testing.T) {
	f := newTestFixture(config.Clinical{ProcessServiceRequestOnlyIfPaid: true})
	patientID := f.addPatient()
	templateID := uuid.New()
	f.catalog.obs[templateID] = &catalog.ObservationTemplate{ID: templateID, Name: "Glucose"}
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateObservation, TemplateID: templateID,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)

	_, err := f.svc.FanOut(context.Background(), sr.ID)
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
	// the gate blocks fan-out only; the request's own status is untouched
	if f.srRepo.srs[sr.ID].Status != StatusDraft {
		t.Errorf("expected status untouched, got %s", f.srRepo.srs[sr.ID].Status)
	}

	// fully invoiced request passes the gate
	if _, err := f.svc.UpdateInvoiceDetails(context.Background(), sr.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.FanOut(context.Background(), sr.ID); err != nil {
		t.Fatalf("expected fan-out after invoicing, got %v", err)
	}
}

func TestFanOut_SampleCollectionLeafLines(t *testing.T) {
	f := newTestFixture(config.Clinical{CreateSampleCollectionForLabTest: true})
	patientID := f.addPatient()
	leafA, leafB := uuid.New(), uuid.New()
	f.catalog.obs[leafA] = &catalog.ObservationTemplate{
		ID: leafA, Name: "HDL", Sample: strPtr("Blood"), SampleType: strPtr("Serum"),
		ContainerColor: strPtr("Red"), UOM: strPtr("ml"),
	}
	f.catalog.obs[leafB] = &catalog.ObservationTemplate{
		ID: leafB, Name: "LDL", Sample: strPtr("Blood"), SampleType: strPtr("Serum"),
		ContainerColor: strPtr("Gold"), UOM: strPtr("ml"),
	}
	panelID := uuid.New()
	f.catalog.obs[panelID] = &catalog.ObservationTemplate{
		ID: panelID, Name: "Lipid Panel", HasComponent: true,
		Components: []catalog.ObservationComponent{
			{TemplateID: leafA, Idx: 1},
			{TemplateID: leafB, Idx: 2},
		},
	}
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateObservation, TemplateID: panelID,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)

	result, err := f.svc.FanOut(context.Background(), sr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sc := result.SampleCollection
	if sc == nil {
		t.Fatal("expected a sample collection")
	}
	if len(sc.Lines) != 2 {
		t.Fatalf("expected one line per leaf template, got %d", len(sc.Lines))
	}
	if sc.Lines[0].TemplateID != leafA || sc.Lines[1].TemplateID != leafB {
		t.Error("expected lines in declared component order")
	}
	if sc.Lines[1].ContainerColor == nil || *sc.Lines[1].ContainerColor != "Gold" {
		t.Errorf("expected container color from leaf template, got %v", sc.Lines[1].ContainerColor)
	}
	if len(f.obsWriter.created) != 0 {
		t.Error("no observations may be created when collecting samples first")
	}
}

func TestUpdateInvoiceDetails_ThreeWay(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	templateID := f.addLabTemplate()
	sr := &ServiceRequest{
		OrderGroup: uuid.New(), PatientID: patientID, PractitionerID: uuid.New(),
		TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
		Quantity: 3,
	}
	f.svc.CreateServiceRequest(context.Background(), sr)

	updated, err := f.svc.UpdateInvoiceDetails(context.Background(), sr.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.BillingStatus != BillingPending {
		t.Errorf("invoicing 0: expected Pending, got %s", updated.BillingStatus)
	}

	updated, _ = f.svc.UpdateInvoiceDetails(context.Background(), sr.ID, 1)
	if updated.BillingStatus != BillingPartlyInvoiced {
		t.Errorf("1 of 3: expected Partly Invoiced, got %s", updated.BillingStatus)
	}

	updated, _ = f.svc.UpdateInvoiceDetails(context.Background(), sr.ID, 2)
	if updated.BillingStatus != BillingInvoiced {
		t.Errorf("3 of 3: expected Invoiced, got %s", updated.BillingStatus)
	}
	if updated.QtyInvoiced != 3 {
		t.Errorf("expected qty_invoiced 3, got %d", updated.QtyInvoiced)
	}
}

func TestCancelCascade(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	templateID := f.addLabTemplate()
	orderGroup := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		sr := &ServiceRequest{
			OrderGroup: orderGroup, PatientID: patientID, PractitionerID: uuid.New(),
			TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
		}
		f.svc.CreateServiceRequest(context.Background(), sr)
		ids = append(ids, sr.ID)
	}
	f.srRepo.srs[ids[0]].Status = StatusActive
	f.srRepo.srs[ids[1]].Status = StatusActive
	f.srRepo.srs[ids[2]].Status = StatusCancelled

	cancelled, err := f.svc.CancelCascade(context.Background(), orderGroup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cancelled) != 2 {
		t.Errorf("expected 2 cancelled, got %d", len(cancelled))
	}
	for _, id := range ids[:2] {
		if f.srRepo.srs[id].Status != StatusCancelled {
			t.Errorf("expected %s Cancelled, got %s", id, f.srRepo.srs[id].Status)
		}
	}
}

func TestCancelCascade_AggregatesFailures(t *testing.T) {
	f := newTestFixture(config.Clinical{})
	patientID := f.addPatient()
	templateID := f.addLabTemplate()
	orderGroup := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		sr := &ServiceRequest{
			OrderGroup: orderGroup, PatientID: patientID, PractitionerID: uuid.New(),
			TemplateType: catalog.TemplateLabTest, TemplateID: templateID,
		}
		f.svc.CreateServiceRequest(context.Background(), sr)
		f.srRepo.srs[sr.ID].Status = StatusActive
		ids = append(ids, sr.ID)
	}
	f.srRepo.failIDs[ids[1]] = true

	cancelled, err := f.svc.CancelCascade(context.Background(), orderGroup)
	var cascadeErr *CancelCascadeError
	if !errors.As(err, &cascadeErr) {
		t.Fatalf("expected CancelCascadeError, got %v", err)
	}
	if len(cascadeErr.Failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(cascadeErr.Failures))
	}
	if cascadeErr.Failures[0].RequestID != ids[1] {
		t.Errorf("expected failure for %s, got %s", ids[1], cascadeErr.Failures[0].RequestID)
	}
	// the other two must still have been cancelled
	if len(cancelled) != 2 {
		t.Errorf("expected 2 cancelled despite the failure, got %d", len(cancelled))
	}
}
