package observation

import (
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/catalog"
)

// Status is an observation's lifecycle state. It is derived on every save
// from the result fields, the incoming status, and the amendment chain;
// callers may only force the terminal states directly.
type Status string

const (
	StatusRegistered     Status = "Registered"
	StatusPreliminary    Status = "Preliminary"
	StatusFinal          Status = "Final"
	StatusAmended        Status = "Amended"
	StatusCorrected      Status = "Corrected"
	StatusCancelled      Status = "Cancelled"
	StatusEnteredInError Status = "Entered in Error"
	StatusUnknown        Status = "Unknown"
)

// terminal statuses never revert to Registered on save.
var terminalStatuses = map[Status]bool{
	StatusFinal:          true,
	StatusCancelled:      true,
	StatusEnteredInError: true,
	StatusUnknown:        true,
}

// Observation is a single recorded clinical finding. Exactly one of the
// result fields is populated, picked by the template's permitted data type.
type Observation struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	PatientID  uuid.UUID        `db:"patient_id" json:"patient_id"`
	TemplateID uuid.UUID        `db:"observation_template_id" json:"observation_template_id"`
	DataType   catalog.DataType `db:"permitted_data_type" json:"permitted_data_type"`
	Status     Status           `db:"status" json:"status"`

	ResultAttach  *string  `db:"result_attach" json:"result_attach,omitempty"`
	ResultBoolean *string  `db:"result_boolean" json:"result_boolean,omitempty"`
	ResultData    *string  `db:"result_data" json:"result_data,omitempty"`
	ResultText    *string  `db:"result_text" json:"result_text,omitempty"`
	ResultFloat   *float64 `db:"result_float" json:"result_float,omitempty"`
	ResultSelect  *string  `db:"result_select" json:"result_select,omitempty"`

	TimeOfResult   *time.Time `db:"time_of_result" json:"time_of_result,omitempty"`
	TimeOfApproval *time.Time `db:"time_of_approval" json:"time_of_approval,omitempty"`

	// Age and Days snapshot the patient's age at creation; reference-range
	// matching uses Days so a late result keeps the range that applied when
	// the observation was registered.
	Age  *string  `db:"age" json:"age,omitempty"`
	Days *float64 `db:"days" json:"days,omitempty"`

	// Reference is the rendered reference-range string for display.
	Reference string `db:"reference" json:"reference,omitempty"`

	AmendedFrom       *uuid.UUID `db:"amended_from" json:"amended_from,omitempty"`
	ParentObservation *uuid.UUID `db:"parent_observation" json:"parent_observation,omitempty"`
	ObservationIdx    int        `db:"observation_idx" json:"observation_idx"`

	SourceDoctype *string    `db:"source_doctype" json:"source_doctype,omitempty"`
	SourceID      *uuid.UUID `db:"source_id" json:"source_id,omitempty"`
	SpecimenID    *uuid.UUID `db:"specimen_id" json:"specimen_id,omitempty"`
	InvoiceRef    *string    `db:"invoice_ref" json:"invoice_ref,omitempty"`
	Note          *string    `db:"note" json:"note,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasResult reports whether any result field holds a value. An empty string
// counts as no result, not an invalid one.
func (o *Observation) HasResult() bool {
	if o.ResultAttach != nil && *o.ResultAttach != "" {
		return true
	}
	if o.ResultBoolean != nil && *o.ResultBoolean != "" {
		return true
	}
	if o.ResultData != nil && *o.ResultData != "" {
		return true
	}
	if o.ResultText != nil && *o.ResultText != "" {
		return true
	}
	if o.ResultFloat != nil {
		return true
	}
	if o.ResultSelect != nil && *o.ResultSelect != "" {
		return true
	}
	return false
}
