package catalog

import (
	"time"

	"github.com/google/uuid"
)

// TemplateType discriminates the order template a service request references.
// Fan-out dispatches on this value.
type TemplateType string

const (
	TemplateLabTest            TemplateType = "Lab Test Template"
	TemplateClinicalProcedure  TemplateType = "Clinical Procedure Template"
	TemplateTherapyType        TemplateType = "Therapy Type"
	TemplateHealthcareActivity TemplateType = "Healthcare Activity"
	TemplateMedication         TemplateType = "Medication"
	TemplateObservation        TemplateType = "Observation Template"
)

// DataType constrains which result field an observation may populate.
type DataType string

const (
	DataQuantity DataType = "Quantity"
	DataNumeric  DataType = "Numeric"
	DataRange    DataType = "Range"
	DataRatio    DataType = "Ratio"
	DataText     DataType = "Text"
	DataSelect   DataType = "Select"
	DataBoolean  DataType = "Boolean"
)

// LabTestTemplate maps to the lab_test_template table.
type LabTestTemplate struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"lab_test_description" json:"lab_test_description,omitempty"`
	ItemCode        *string   `db:"item_code" json:"item_code,omitempty"`
	PatientCareType *string   `db:"patient_care_type" json:"patient_care_type,omitempty"`
	StaffRole       *string   `db:"staff_role" json:"staff_role,omitempty"`
	Department      *string   `db:"department" json:"department,omitempty"`
	MedicalCode     *string   `db:"medical_code" json:"medical_code,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ClinicalProcedureTemplate maps to the clinical_procedure_template table.
type ClinicalProcedureTemplate struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	ItemCode        *string   `db:"item_code" json:"item_code,omitempty"`
	PatientCareType *string   `db:"patient_care_type" json:"patient_care_type,omitempty"`
	StaffRole       *string   `db:"staff_role" json:"staff_role,omitempty"`
	MedicalCode     *string   `db:"medical_code" json:"medical_code,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// TherapyType maps to the therapy_type table.
type TherapyType struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Department  *string   `db:"department" json:"department,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HealthcareActivity maps to the healthcare_activity table. Activities are
// generic nursing work items; TaskKind names the record the completed task
// should produce.
type HealthcareActivity struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	TaskKind    *string   `db:"task_kind" json:"task_kind,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Medication maps to the medication table (drug catalog entry).
type Medication struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	ItemCode        *string   `db:"item_code" json:"item_code,omitempty"`
	PatientCareType *string   `db:"patient_care_type" json:"patient_care_type,omitempty"`
	StaffRole       *string   `db:"staff_role" json:"staff_role,omitempty"`
	MedicalCode     *string   `db:"medical_code" json:"medical_code,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ObservationTemplate maps to the observation_template table. Templates with
// components act as panels: fan-out creates one child observation per
// component, and sample collection walks one level into the children.
type ObservationTemplate struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	DataType       DataType  `db:"permitted_data_type" json:"permitted_data_type"`
	Options        *string   `db:"options" json:"options,omitempty"` // newline-separated Select choices
	HasComponent   bool      `db:"has_component" json:"has_component"`
	Sample         *string   `db:"sample" json:"sample,omitempty"`
	SampleType     *string   `db:"sample_type" json:"sample_type,omitempty"`
	ContainerColor *string   `db:"container_closure_color" json:"container_closure_color,omitempty"`
	UOM            *string   `db:"uom" json:"uom,omitempty"`
	SampleQty      *float64  `db:"sample_qty" json:"sample_qty,omitempty"`
	ItemCode       *string   `db:"item_code" json:"item_code,omitempty"`
	Description    *string   `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	Components      []ObservationComponent `db:"-" json:"components,omitempty"`
	ReferenceRanges []ReferenceRangeRule   `db:"-" json:"reference_ranges,omitempty"`
}

// ObservationComponent is a line in a panel template pointing at a leaf
// template. Idx fixes the display order of the resulting child observations.
type ObservationComponent struct {
	TemplateID uuid.UUID `db:"observation_template_id" json:"observation_template_id"`
	Idx        int       `db:"idx" json:"idx"`
}

// ReferenceRangeRule is one row of a template's reference-range table.
// Rules are evaluated in declared order and every matching rule contributes
// to the rendered reference string.
type ReferenceRangeRule struct {
	AppliesTo           string   `db:"applies_to" json:"applies_to"` // All, Male, Female
	Age                 string   `db:"age" json:"age"`               // All, Range
	AgeFrom             float64  `db:"age_from" json:"age_from"`
	AgeTo               float64  `db:"age_to" json:"age_to"`
	FromAgeType         string   `db:"from_age_type" json:"from_age_type"` // Days, Months, Years
	ToAgeType           string   `db:"to_age_type" json:"to_age_type"`
	ReferenceFrom       *string  `db:"reference_from" json:"reference_from,omitempty"`
	ReferenceTo         *string  `db:"reference_to" json:"reference_to,omitempty"`
	Conditions          *string  `db:"conditions" json:"conditions,omitempty"`
	ShortInterpretation *string  `db:"short_interpretation" json:"short_interpretation,omitempty"`
}
