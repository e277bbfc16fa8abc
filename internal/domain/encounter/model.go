package encounter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusCancelled Status = "Cancelled"
)

// PatientEncounter is the order group: submitting it spawns one service
// request per prescribed line and fans each out into its activity document.
type PatientEncounter struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Title          string     `db:"title" json:"title"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	PractitionerID uuid.UUID  `db:"practitioner_id" json:"practitioner_id"`
	Status         Status     `db:"status" json:"status"`
	EncounterDate  *time.Time `db:"encounter_date" json:"encounter_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	LabTests     []LabPrescription       `db:"-" json:"lab_tests,omitempty"`
	Procedures   []ProcedurePrescription `db:"-" json:"procedures,omitempty"`
	Therapies    []TherapyLine           `db:"-" json:"therapies,omitempty"`
	Observations []ObservationLine       `db:"-" json:"observations,omitempty"`
	Drugs        []DrugPrescription      `db:"-" json:"drugs,omitempty"`
}

type LabPrescription struct {
	TemplateID uuid.UUID `db:"template_id" json:"template_id"`
	Priority   *string   `db:"priority" json:"priority,omitempty"`
	Invoiced   bool      `db:"invoiced" json:"invoiced"`
}

type ProcedurePrescription struct {
	TemplateID uuid.UUID `db:"template_id" json:"template_id"`
	Priority   *string   `db:"priority" json:"priority,omitempty"`
	Invoiced   bool      `db:"invoiced" json:"invoiced"`
}

type TherapyLine struct {
	TherapyTypeID uuid.UUID `db:"therapy_type_id" json:"therapy_type_id"`
	Sessions      int       `db:"sessions" json:"sessions"`
}

type ObservationLine struct {
	TemplateID uuid.UUID `db:"template_id" json:"template_id"`
}

// DrugPrescription is a drug line. Either MedicationID (catalog link) or
// ItemCode must identify the drug. DosesPerDay and PeriodDays size the
// dispensed quantity.
type DrugPrescription struct {
	MedicationID    *uuid.UUID `db:"medication_id" json:"medication_id,omitempty"`
	ItemCode        *string    `db:"item_code" json:"item_code,omitempty"`
	Dosage          *string    `db:"dosage" json:"dosage,omitempty"`
	DosageForm      *string    `db:"dosage_form" json:"dosage_form,omitempty"`
	DosesPerDay     int        `db:"doses_per_day" json:"doses_per_day"`
	PeriodDays      int        `db:"period_days" json:"period_days"`
	AsNeeded        bool       `db:"as_needed" json:"as_needed"`
	NumberOfRepeats int        `db:"number_of_repeats" json:"number_of_repeats"`
}

// Quantity is the dispensed amount for the prescription, never below one.
func (d DrugPrescription) Quantity() int {
	qty := d.DosesPerDay * d.PeriodDays
	if qty < 1 {
		return 1
	}
	return qty
}

// Period renders the prescribed duration for the order, nil when no period
// was given.
func (d DrugPrescription) Period() *string {
	if d.PeriodDays <= 0 {
		return nil
	}
	p := fmt.Sprintf("%d Day(s)", d.PeriodDays)
	return &p
}
