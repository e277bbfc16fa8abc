package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/config"
	"github.com/careflow/careflow/internal/domain/catalog"
	"github.com/careflow/careflow/internal/domain/identity"
	"github.com/careflow/careflow/internal/domain/observation"
	"github.com/careflow/careflow/internal/platform/locker"
)

const lockTTL = 5 * time.Second

// PatientDirectory is the demographic slice the orchestrator snapshots onto
// activity documents.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetAge(ctx context.Context, id uuid.UUID, asOf time.Time) (identity.Age, error)
}

// TemplateCatalog resolves the polymorphic template reference on a request.
type TemplateCatalog interface {
	GetLabTestTemplate(ctx context.Context, id uuid.UUID) (*catalog.LabTestTemplate, error)
	GetClinicalProcedureTemplate(ctx context.Context, id uuid.UUID) (*catalog.ClinicalProcedureTemplate, error)
	GetTherapyType(ctx context.Context, id uuid.UUID) (*catalog.TherapyType, error)
	GetHealthcareActivity(ctx context.Context, id uuid.UUID) (*catalog.HealthcareActivity, error)
	GetMedication(ctx context.Context, id uuid.UUID) (*catalog.Medication, error)
	GetObservationTemplate(ctx context.Context, id uuid.UUID) (*catalog.ObservationTemplate, error)
}

// ObservationWriter creates observations during fan-out.
type ObservationWriter interface {
	AddObservation(ctx context.Context, in observation.AddObservationInput) (*observation.Observation, error)
}

// Service is the order orchestrator: it constructs service requests from
// templates, fans them out into activity documents, and keeps quantity and
// billing bookkeeping consistent.
type Service struct {
	requests     ServiceRequestRepository
	activities   ActivityRepository
	patients     PatientDirectory
	catalog      TemplateCatalog
	observations ObservationWriter
	locks        locker.Locker
	cfg          config.Clinical
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(
	requests ServiceRequestRepository,
	activities ActivityRepository,
	patients PatientDirectory,
	cat TemplateCatalog,
	observations ObservationWriter,
	locks locker.Locker,
	cfg config.Clinical,
	logger zerolog.Logger,
) *Service {
	return &Service{
		requests:     requests,
		activities:   activities,
		patients:     patients,
		catalog:      cat,
		observations: observations,
		locks:        locks,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// templateDetails is the slice of a catalog template the order copies at
// creation.
type templateDetails struct {
	name            string
	itemCode        *string
	patientCareType *string
	staffRole       *string
	department      *string
	medicalCode     *string
}

func (s *Service) lookupTemplate(ctx context.Context, tt catalog.TemplateType, id uuid.UUID) (templateDetails, error) {
	switch tt {
	case catalog.TemplateLabTest:
		t, err := s.catalog.GetLabTestTemplate(ctx, id)
		if err != nil {
			return templateDetails{}, err
		}
		return templateDetails{name: t.Name, itemCode: t.ItemCode, patientCareType: t.PatientCareType,
			staffRole: t.StaffRole, department: t.Department, medicalCode: t.MedicalCode}, nil
	case catalog.TemplateClinicalProcedure:
		t, err := s.catalog.GetClinicalProcedureTemplate(ctx, id)
		if err != nil {
			return templateDetails{}, err
		}
		return templateDetails{name: t.Name, itemCode: t.ItemCode, patientCareType: t.PatientCareType,
			staffRole: t.StaffRole, medicalCode: t.MedicalCode}, nil
	case catalog.TemplateTherapyType:
		t, err := s.catalog.GetTherapyType(ctx, id)
		if err != nil {
			return templateDetails{}, err
		}
		return templateDetails{name: t.Name, department: t.Department}, nil
	case catalog.TemplateHealthcareActivity:
		t, err := s.catalog.GetHealthcareActivity(ctx, id)
		if err != nil {
			return templateDetails{}, err
		}
		return templateDetails{name: t.Name}, nil
	case catalog.TemplateMedication:
		t, err := s.catalog.GetMedication(ctx, id)
		if err != nil {
			return templateDetails{}, err
		}
		return templateDetails{name: t.Name, itemCode: t.ItemCode, patientCareType: t.PatientCareType,
			staffRole: t.StaffRole, medicalCode: t.MedicalCode}, nil
	case catalog.TemplateObservation:
		t, err := s.catalog.GetObservationTemplate(ctx, id)
		if err != nil {
			return templateDetails{}, err
		}
		return templateDetails{name: t.Name, itemCode: t.ItemCode}, nil
	default:
		return templateDetails{}, fmt.Errorf("unknown template type %q", tt)
	}
}

// CreateServiceRequest fills order details from the referenced template,
// applies the intent/priority defaults and persists the request as Draft.
// An amendment marks the superseded request Replaced in the same call so
// the two are never both Active.
func (s *Service) CreateServiceRequest(ctx context.Context, sr *ServiceRequest) error {
	if sr.TemplateType == "" || sr.TemplateID == uuid.Nil {
		return fmt.Errorf("%w: service request for patient %s", ErrMissingTemplateReference, sr.PatientID)
	}
	tmpl, err := s.lookupTemplate(ctx, sr.TemplateType, sr.TemplateID)
	if err != nil {
		return fmt.Errorf("template %s %s: %w", sr.TemplateType, sr.TemplateID, err)
	}

	sr.ItemCode = tmpl.itemCode
	if sr.PatientCareType == nil {
		sr.PatientCareType = tmpl.patientCareType
	}
	if sr.StaffRole == nil {
		sr.StaffRole = tmpl.staffRole
	}
	if sr.Department == nil {
		sr.Department = tmpl.department
	}
	if sr.MedicalCode == nil {
		sr.MedicalCode = tmpl.medicalCode
	}
	if sr.Intent == "" {
		sr.Intent = DefaultIntent
	}
	if sr.Priority == "" {
		sr.Priority = DefaultPriority
	}
	if sr.Quantity <= 0 {
		sr.Quantity = 1
	}

	p, err := s.patients.GetPatient(ctx, sr.PatientID)
	if err != nil {
		return fmt.Errorf("patient %s: %w", sr.PatientID, err)
	}
	sr.Title = p.Name + " - " + tmpl.name

	sr.Status = StatusDraft
	sr.BillingStatus = DeriveBillingStatus(sr.QtyInvoiced, sr.Quantity)

	if sr.AmendedFrom != nil {
		prior, err := s.requests.GetByID(ctx, *sr.AmendedFrom)
		if err != nil {
			return fmt.Errorf("amended request %s: %w", *sr.AmendedFrom, err)
		}
		prior.Status = StatusReplaced
		if err := s.requests.Update(ctx, prior); err != nil {
			return err
		}
	}

	return s.requests.Create(ctx, sr)
}

// Activate moves a Draft request to Active, making it eligible for fan-out.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	return s.setStatus(ctx, id, StatusActive)
}

// Cancel is terminal. Replaced and already Cancelled requests are left as
// they are.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	return s.setStatus(ctx, id, StatusCancelled)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status Status) (*ServiceRequest, error) {
	if status == StatusReplaced {
		return nil, fmt.Errorf("status Replaced is only set through an amendment")
	}
	sr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if terminalStatuses[sr.Status] {
		return nil, fmt.Errorf("service request %s is %s and cannot change status", id, sr.Status)
	}
	sr.Status = status
	if err := s.requests.Update(ctx, sr); err != nil {
		return nil, err
	}
	return sr, nil
}

// FanOut turns an order into its concrete activity document, dispatching on
// the template type, and marks the request Scheduled once the document is
// linked.
func (s *Service) FanOut(ctx context.Context, id uuid.UUID) (*FanOutResult, error) {
	sr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if terminalStatuses[sr.Status] {
		return nil, fmt.Errorf("service request %s is %s and cannot be fanned out", id, sr.Status)
	}
	if sr.TemplateType == "" || sr.TemplateID == uuid.Nil {
		return nil, fmt.Errorf("%w: service request %s", ErrMissingTemplateReference, id)
	}

	p, err := s.patients.GetPatient(ctx, sr.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", sr.PatientID, err)
	}

	result := &FanOutResult{}
	switch sr.TemplateType {
	case catalog.TemplateLabTest:
		result.LabTest, err = s.makeLabTest(ctx, sr, p)
	case catalog.TemplateClinicalProcedure:
		result.ClinicalProcedure, err = s.makeClinicalProcedure(ctx, sr, p)
	case catalog.TemplateTherapyType:
		result.TherapySession, err = s.makeTherapySession(ctx, sr, p)
	case catalog.TemplateHealthcareActivity:
		result.NursingTask, err = s.makeNursingTask(ctx, sr, p)
	case catalog.TemplateMedication:
		err = s.makeMedicationRequest(ctx, sr)
	case catalog.TemplateObservation:
		err = s.makeObservations(ctx, sr, p, result)
	default:
		err = fmt.Errorf("unknown template type %q on service request %s", sr.TemplateType, id)
	}
	if err != nil {
		return nil, err
	}

	sr.Status = StatusScheduled
	if err := s.requests.Update(ctx, sr); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) ageDisplay(ctx context.Context, p *identity.Patient) *string {
	if p.DOB == nil {
		return nil
	}
	age, err := s.patients.GetAge(ctx, p.ID, s.now())
	if err != nil {
		return nil
	}
	return &age.Display
}

func (s *Service) makeLabTest(ctx context.Context, sr *ServiceRequest, p *identity.Patient) (*LabTest, error) {
	lt := &LabTest{
		ServiceRequestID: sr.ID,
		TemplateID:       sr.TemplateID,
		PatientID:        p.ID,
		PatientName:      p.Name,
		PatientSex:       p.Sex,
		PatientAge:       s.ageDisplay(ctx, p),
		Email:            p.Email,
		Mobile:           p.Mobile,
		PractitionerID:   sr.PractitionerID,
		RequestingDept:   sr.Department,
		Date:             sr.OccurrenceDate,
		Time:             sr.OccurrenceTime,
		Invoiced:         sr.BillingStatus == BillingInvoiced,
		MedicalCode:      sr.MedicalCode,
	}
	if err := s.activities.CreateLabTest(ctx, lt); err != nil {
		return nil, err
	}
	return lt, nil
}

func (s *Service) makeClinicalProcedure(ctx context.Context, sr *ServiceRequest, p *identity.Patient) (*ClinicalProcedure, error) {
	cp := &ClinicalProcedure{
		ServiceRequestID: sr.ID,
		TemplateID:       sr.TemplateID,
		PatientID:        p.ID,
		PatientName:      p.Name,
		PatientSex:       p.Sex,
		PatientAge:       s.ageDisplay(ctx, p),
		PractitionerID:   sr.PractitionerID,
		StartDate:        sr.OccurrenceDate,
		StartTime:        sr.OccurrenceTime,
		Department:       sr.Department,
		MedicalCode:      sr.MedicalCode,
	}
	if err := s.activities.CreateClinicalProcedure(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (s *Service) makeTherapySession(ctx context.Context, sr *ServiceRequest, p *identity.Patient) (*TherapySession, error) {
	ts := &TherapySession{
		ServiceRequestID: sr.ID,
		TherapyTypeID:    sr.TemplateID,
		PatientID:        p.ID,
		PatientName:      p.Name,
		PatientSex:       p.Sex,
		PatientAge:       s.ageDisplay(ctx, p),
		PractitionerID:   sr.PractitionerID,
		Department:       sr.Department,
		StartDate:        sr.OccurrenceDate,
		StartTime:        sr.OccurrenceTime,
		Invoiced:         sr.BillingStatus == BillingInvoiced,
	}
	if err := s.activities.CreateTherapySession(ctx, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (s *Service) makeNursingTask(ctx context.Context, sr *ServiceRequest, p *identity.Patient) (*NursingTask, error) {
	activity, err := s.catalog.GetHealthcareActivity(ctx, sr.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("healthcare activity %s: %w", sr.TemplateID, err)
	}
	nt := &NursingTask{
		ServiceRequestID:   sr.ID,
		ActivityID:         sr.TemplateID,
		PatientID:          p.ID,
		PatientName:        p.Name,
		PatientSex:         p.Sex,
		PractitionerID:     sr.PractitionerID,
		RequestedStartTime: s.now(),
		Description:        activity.Description,
		TaskKind:           activity.TaskKind,
		Status:             TaskStatusRequested,
	}
	if err := s.activities.CreateNursingTask(ctx, nt); err != nil {
		return nil, err
	}
	return nt, nil
}

func (s *Service) makeMedicationRequest(ctx context.Context, sr *ServiceRequest) error {
	med, err := s.catalog.GetMedication(ctx, sr.TemplateID)
	if err != nil {
		return fmt.Errorf("medication %s: %w", sr.TemplateID, err)
	}
	mr := &MedicationRequest{
		OrderGroup:      sr.OrderGroup,
		PatientID:       sr.PatientID,
		PractitionerID:  sr.PractitionerID,
		MedicationID:    med.ID,
		Status:          string(StatusDraft),
		Intent:          sr.Intent,
		Priority:        sr.Priority,
		Quantity:        sr.Quantity,
		Dosage:          sr.Dosage,
		DosageForm:      sr.DosageForm,
		Period:          sr.Period,
		AsNeeded:        sr.AsNeeded,
		NumberOfRepeats: sr.NumberOfRepeats,
		Description:     med.Description,
		ExpectedDate:    sr.OccurrenceDate,
	}
	return s.activities.CreateMedicationRequest(ctx, mr)
}

// makeObservations is the observation-template arm of fan-out. It is the
// only arm behind the payment gate: billing policy can require the request
// to be fully invoiced first. With the sample-collection flag on, a
// collection with one line per leaf template is created instead of
// observations; otherwise a root observation is created, plus one child per
// component for panel templates.
func (s *Service) makeObservations(ctx context.Context, sr *ServiceRequest, p *identity.Patient, result *FanOutResult) error {
	if s.cfg.ProcessServiceRequestOnlyIfPaid && sr.BillingStatus != BillingInvoiced {
		return fmt.Errorf("%w: service request %s is %s", ErrPaymentRequired, sr.ID, sr.BillingStatus)
	}

	tmpl, err := s.catalog.GetObservationTemplate(ctx, sr.TemplateID)
	if err != nil {
		return fmt.Errorf("observation template %s: %w", sr.TemplateID, err)
	}

	if s.cfg.CreateSampleCollectionForLabTest {
		sc, err := s.makeSampleCollection(ctx, sr, p, tmpl)
		if err != nil {
			return err
		}
		result.SampleCollection = sc
		return nil
	}

	sourceDoctype := "Patient Encounter"
	root, err := s.observations.AddObservation(ctx, observation.AddObservationInput{
		PatientID:     sr.PatientID,
		TemplateID:    sr.TemplateID,
		SourceDoctype: sourceDoctype,
		SourceID:      &sr.OrderGroup,
	})
	if err != nil {
		return err
	}
	result.ObservationIDs = append(result.ObservationIDs, root.ID)

	if tmpl.HasComponent {
		for _, comp := range tmpl.Components {
			child, err := s.observations.AddObservation(ctx, observation.AddObservationInput{
				PatientID:     sr.PatientID,
				TemplateID:    comp.TemplateID,
				SourceDoctype: sourceDoctype,
				SourceID:      &sr.OrderGroup,
				ParentID:      &root.ID,
			})
			if err != nil {
				return err
			}
			result.ObservationIDs = append(result.ObservationIDs, child.ID)
		}
	}
	return nil
}

func (s *Service) makeSampleCollection(ctx context.Context, sr *ServiceRequest, p *identity.Patient, tmpl *catalog.ObservationTemplate) (*SampleCollection, error) {
	sc := &SampleCollection{
		ServiceRequestID: sr.ID,
		PatientID:        p.ID,
		PatientSex:       p.Sex,
		PatientAge:       s.ageDisplay(ctx, p),
	}

	leaves := []*catalog.ObservationTemplate{tmpl}
	if tmpl.HasComponent {
		leaves = leaves[:0]
		for _, comp := range tmpl.Components {
			leaf, err := s.catalog.GetObservationTemplate(ctx, comp.TemplateID)
			if err != nil {
				return nil, fmt.Errorf("component template %s: %w", comp.TemplateID, err)
			}
			leaves = append(leaves, leaf)
		}
	}
	for _, leaf := range leaves {
		sc.Lines = append(sc.Lines, SampleCollectionLine{
			TemplateID:     leaf.ID,
			Sample:         leaf.Sample,
			SampleType:     leaf.SampleType,
			ContainerColor: leaf.ContainerColor,
			UOM:            leaf.UOM,
			SampleQty:      leaf.SampleQty,
		})
	}

	if err := s.activities.CreateSampleCollection(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// UpdateInvoiceDetails adds qty to the invoiced count and rederives the
// billing status, as a read-modify-write under the per-entity lock so
// concurrent invoicing cannot lose updates.
func (s *Service) UpdateInvoiceDetails(ctx context.Context, id uuid.UUID, qty int) (*ServiceRequest, error) {
	var out *ServiceRequest
	err := locker.WithLock(ctx, s.locks, "service_request:"+id.String(), lockTTL, func() error {
		sr, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		sr.QtyInvoiced += qty
		sr.BillingStatus = DeriveBillingStatus(sr.QtyInvoiced, sr.Quantity)
		if err := s.requests.Update(ctx, sr); err != nil {
			return err
		}
		out = sr
		return nil
	})
	return out, err
}

// CancelCascade cancels every non-terminal request in an order group. All
// requests are attempted; failures are aggregated into a
// CancelCascadeError alongside the ids that did cancel.
func (s *Service) CancelCascade(ctx context.Context, orderGroup uuid.UUID) ([]uuid.UUID, error) {
	srs, err := s.requests.ListByOrderGroup(ctx, orderGroup)
	if err != nil {
		return nil, err
	}

	var cancelled []uuid.UUID
	var failures []CancelFailure
	for _, sr := range srs {
		if terminalStatuses[sr.Status] {
			continue
		}
		sr.Status = StatusCancelled
		if err := s.requests.Update(ctx, sr); err != nil {
			failures = append(failures, CancelFailure{RequestID: sr.ID, Err: err})
			continue
		}
		cancelled = append(cancelled, sr.ID)
	}

	if len(failures) > 0 {
		return cancelled, &CancelCascadeError{OrderGroup: orderGroup, Failures: failures}
	}
	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*ServiceRequest, int, error) {
	return s.requests.List(ctx, limit, offset)
}

func (s *Service) ListByOrderGroup(ctx context.Context, orderGroup uuid.UUID) ([]*ServiceRequest, error) {
	return s.requests.ListByOrderGroup(ctx, orderGroup)
}

// ExistsForTemplate reports whether an order group already holds a request
// for the given template, the idempotence guard for encounter submission.
func (s *Service) ExistsForTemplate(ctx context.Context, orderGroup, templateID uuid.UUID) (bool, error) {
	return s.requests.ExistsByOrderGroupAndTemplate(ctx, orderGroup, templateID)
}

// ListNursingTasks returns the request's nursing worklist, newest first.
func (s *Service) ListNursingTasks(ctx context.Context, id uuid.UUID) ([]*NursingTask, error) {
	if _, err := s.requests.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.activities.ListNursingTasksByRequest(ctx, id)
}

// MarkTaskDone closes the request's open nursing tasks and stamps
// task_done_at, re-arming the repeat gate for the next sweep window.
func (s *Service) MarkTaskDone(ctx context.Context, id uuid.UUID) error {
	sr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.activities.CompleteOpenNursingTasks(ctx, id); err != nil {
		return err
	}
	t := s.now()
	sr.TaskDoneAt = &t
	return s.requests.Update(ctx, sr)
}
