package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/catalog"
)

// Status is a service request's lifecycle state. Replaced is reachable only
// through an amendment chain and never reverts.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusActive    Status = "Active"
	StatusScheduled Status = "Scheduled"
	StatusReplaced  Status = "Replaced"
	StatusCancelled Status = "Cancelled"
)

var terminalStatuses = map[Status]bool{
	StatusReplaced:  true,
	StatusCancelled: true,
}

// BillingStatus is a pure function of qty_invoiced vs quantity; see
// DeriveBillingStatus.
type BillingStatus string

const (
	BillingPending        BillingStatus = "Pending"
	BillingPartlyInvoiced BillingStatus = "Partly Invoiced"
	BillingInvoiced       BillingStatus = "Invoiced"
)

const (
	DefaultIntent   = "Original Order"
	DefaultPriority = "Routine"
)

// ServiceRequest is an order for a clinical activity, spawned from an
// encounter (its order group) or created ad hoc. The template reference is
// polymorphic: TemplateType names the catalog table TemplateID points into.
type ServiceRequest struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	OrderGroup uuid.UUID `db:"order_group" json:"order_group"`

	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	PractitionerID uuid.UUID `db:"practitioner_id" json:"practitioner_id"`

	TemplateType catalog.TemplateType `db:"template_type" json:"template_type"`
	TemplateID   uuid.UUID            `db:"template_id" json:"template_id"`

	ItemCode        *string `db:"item_code" json:"item_code,omitempty"`
	PatientCareType *string `db:"patient_care_type" json:"patient_care_type,omitempty"`
	StaffRole       *string `db:"staff_role" json:"staff_role,omitempty"`
	MedicalCode     *string `db:"medical_code" json:"medical_code,omitempty"`
	Department      *string `db:"department" json:"department,omitempty"`

	Intent   string `db:"intent" json:"intent"`
	Priority string `db:"priority" json:"priority"`
	Status   Status `db:"status" json:"status"`

	Quantity      int           `db:"quantity" json:"quantity"`
	QtyInvoiced   int           `db:"qty_invoiced" json:"qty_invoiced"`
	BillingStatus BillingStatus `db:"billing_status" json:"billing_status"`

	OccurrenceDate *time.Time `db:"occurrence_date" json:"occurrence_date,omitempty"`
	OccurrenceTime *string    `db:"occurrence_time" json:"occurrence_time,omitempty"`

	// Prescription details for Medication orders, copied from the encounter
	// drug line and onto the medication request at fan-out.
	Dosage          *string `db:"dosage" json:"dosage,omitempty"`
	DosageForm      *string `db:"dosage_form" json:"dosage_form,omitempty"`
	Period          *string `db:"period" json:"period,omitempty"`
	AsNeeded        bool    `db:"as_needed" json:"as_needed"`
	NumberOfRepeats int     `db:"number_of_repeats" json:"number_of_repeats"`

	// RepeatInEvery is a repeat interval in seconds for Healthcare Activity
	// requests; TaskDoneAt is stamped by task completion and gates the sweep.
	RepeatInEvery int        `db:"repeat_in_every" json:"repeat_in_every"`
	TaskDoneAt    *time.Time `db:"task_done_at" json:"task_done_at,omitempty"`

	AmendedFrom *uuid.UUID `db:"amended_from" json:"amended_from,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DeriveBillingStatus maps invoiced quantity onto the three-way billing
// state: nothing invoiced is Pending, short of the ordered quantity is
// Partly Invoiced, at or above it is Invoiced.
func DeriveBillingStatus(qtyInvoiced, quantity int) BillingStatus {
	switch {
	case qtyInvoiced == 0:
		return BillingPending
	case qtyInvoiced < quantity:
		return BillingPartlyInvoiced
	default:
		return BillingInvoiced
	}
}

// LabTest is the activity document produced by fanning out a lab-test
// request. It carries a demographic snapshot so the lab worksheet needs no
// joins.
type LabTest struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ServiceRequestID uuid.UUID  `db:"service_request_id" json:"service_request_id"`
	TemplateID       uuid.UUID  `db:"template_id" json:"template_id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName      string     `db:"patient_name" json:"patient_name"`
	PatientSex       string     `db:"patient_sex" json:"patient_sex"`
	PatientAge       *string    `db:"patient_age" json:"patient_age,omitempty"`
	Email            *string    `db:"email" json:"email,omitempty"`
	Mobile           *string    `db:"mobile" json:"mobile,omitempty"`
	PractitionerID   uuid.UUID  `db:"practitioner_id" json:"practitioner_id"`
	RequestingDept   *string    `db:"requesting_department" json:"requesting_department,omitempty"`
	Date             *time.Time `db:"date" json:"date,omitempty"`
	Time             *string    `db:"time" json:"time,omitempty"`
	Invoiced         bool       `db:"invoiced" json:"invoiced"`
	MedicalCode      *string    `db:"medical_code" json:"medical_code,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// ClinicalProcedure is the activity document for a procedure request.
type ClinicalProcedure struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ServiceRequestID uuid.UUID  `db:"service_request_id" json:"service_request_id"`
	TemplateID       uuid.UUID  `db:"template_id" json:"template_id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName      string     `db:"patient_name" json:"patient_name"`
	PatientSex       string     `db:"patient_sex" json:"patient_sex"`
	PatientAge       *string    `db:"patient_age" json:"patient_age,omitempty"`
	PractitionerID   uuid.UUID  `db:"practitioner_id" json:"practitioner_id"`
	StartDate        *time.Time `db:"start_date" json:"start_date,omitempty"`
	StartTime        *string    `db:"start_time" json:"start_time,omitempty"`
	Department       *string    `db:"department" json:"department,omitempty"`
	MedicalCode      *string    `db:"medical_code" json:"medical_code,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// TherapySession is the activity document for a therapy request.
type TherapySession struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ServiceRequestID uuid.UUID  `db:"service_request_id" json:"service_request_id"`
	TherapyTypeID    uuid.UUID  `db:"therapy_type_id" json:"therapy_type_id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName      string     `db:"patient_name" json:"patient_name"`
	PatientSex       string     `db:"patient_sex" json:"patient_sex"`
	PatientAge       *string    `db:"patient_age" json:"patient_age,omitempty"`
	PractitionerID   uuid.UUID  `db:"practitioner_id" json:"practitioner_id"`
	Department       *string    `db:"department" json:"department,omitempty"`
	StartDate        *time.Time `db:"start_date" json:"start_date,omitempty"`
	StartTime        *string    `db:"start_time" json:"start_time,omitempty"`
	Invoiced         bool       `db:"invoiced" json:"invoiced"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Nursing task lifecycle. Tasks are created Requested and flipped to
// Completed when the request's task-done endpoint is hit; the sweep refuses
// to stack a new task on a request that still has one open.
const (
	TaskStatusRequested = "Requested"
	TaskStatusCompleted = "Completed"
)

// NursingTask is the activity document for a healthcare-activity request;
// repeating requests generate one per sweep interval.
type NursingTask struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	ServiceRequestID   uuid.UUID `db:"service_request_id" json:"service_request_id"`
	ActivityID         uuid.UUID `db:"activity_id" json:"activity_id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	PatientName        string    `db:"patient_name" json:"patient_name"`
	PatientSex         string    `db:"patient_sex" json:"patient_sex"`
	PractitionerID     uuid.UUID `db:"practitioner_id" json:"practitioner_id"`
	RequestedStartTime time.Time `db:"requested_start_time" json:"requested_start_time"`
	Description        *string   `db:"description" json:"description,omitempty"`
	TaskKind           *string   `db:"task_kind" json:"task_kind,omitempty"`
	Status             string    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// MedicationRequest is the activity document for a drug order.
type MedicationRequest struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OrderGroup      uuid.UUID  `db:"order_group" json:"order_group"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	PractitionerID  uuid.UUID  `db:"practitioner_id" json:"practitioner_id"`
	MedicationID    uuid.UUID  `db:"medication_id" json:"medication_id"`
	Status          string     `db:"status" json:"status"`
	Intent          string     `db:"intent" json:"intent"`
	Priority        string     `db:"priority" json:"priority"`
	Quantity        int        `db:"quantity" json:"quantity"`
	Dosage          *string    `db:"dosage" json:"dosage,omitempty"`
	DosageForm      *string    `db:"dosage_form" json:"dosage_form,omitempty"`
	Period          *string    `db:"period" json:"period,omitempty"`
	AsNeeded        bool       `db:"as_needed" json:"as_needed"`
	NumberOfRepeats int        `db:"number_of_repeats" json:"number_of_repeats"`
	Description     *string    `db:"description" json:"description,omitempty"`
	ExpectedDate    *time.Time `db:"expected_date" json:"expected_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// SampleCollection represents physical specimen collection before lab
// observations exist. One collection per request, one line per leaf
// template.
type SampleCollection struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ServiceRequestID uuid.UUID `db:"service_request_id" json:"service_request_id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	PatientSex       string    `db:"patient_sex" json:"patient_sex"`
	PatientAge       *string   `db:"patient_age" json:"patient_age,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`

	Lines []SampleCollectionLine `db:"-" json:"lines"`
}

// SampleCollectionLine carries the specimen requirements declared on one
// leaf observation template.
type SampleCollectionLine struct {
	TemplateID     uuid.UUID `db:"observation_template_id" json:"observation_template_id"`
	Sample         *string   `db:"sample" json:"sample,omitempty"`
	SampleType     *string   `db:"sample_type" json:"sample_type,omitempty"`
	ContainerColor *string   `db:"container_closure_color" json:"container_closure_color,omitempty"`
	UOM            *string   `db:"uom" json:"uom,omitempty"`
	SampleQty      *float64  `db:"sample_qty" json:"sample_qty,omitempty"`
}

// FanOutResult reports what a fan-out produced, for the API response.
type FanOutResult struct {
	LabTest           *LabTest           `json:"lab_test,omitempty"`
	ClinicalProcedure *ClinicalProcedure `json:"clinical_procedure,omitempty"`
	TherapySession    *TherapySession    `json:"therapy_session,omitempty"`
	NursingTask       *NursingTask       `json:"nursing_task,omitempty"`
	SampleCollection  *SampleCollection  `json:"sample_collection,omitempty"`
	ObservationIDs    []uuid.UUID        `json:"observation_ids,omitempty"`
}
