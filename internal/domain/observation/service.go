package observation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/catalog"
	"github.com/careflow/careflow/internal/domain/identity"
	"github.com/careflow/careflow/internal/platform/locker"
)

// PatientDirectory is the slice of the patient service the observation
// workflow needs: demographics and age resolution.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetAge(ctx context.Context, id uuid.UUID, asOf time.Time) (identity.Age, error)
}

// TemplateCatalog resolves observation templates and panel membership.
type TemplateCatalog interface {
	GetObservationTemplate(ctx context.Context, id uuid.UUID) (*catalog.ObservationTemplate, error)
	ComponentIdx(ctx context.Context, parentTemplateID, childTemplateID uuid.UUID) (int, error)
}

const lockTTL = 5 * time.Second

// Service owns the observation lifecycle: creation, result entry, amendment
// and the terminal transitions. Result submissions on the same observation
// are serialized through the locker.
type Service struct {
	repo      Repository
	patients  PatientDirectory
	templates TemplateCatalog
	locks     locker.Locker
	now       func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, templates TemplateCatalog, locks locker.Locker) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		templates: templates,
		locks:     locks,
		now:       time.Now,
	}
}

// AddObservationInput carries everything needed to register an observation.
// AsOf overrides the age reference date when a prior posting date exists
// (e.g. from an associated diagnostic report); zero means now.
type AddObservationInput struct {
	PatientID     uuid.UUID
	TemplateID    uuid.UUID
	DataType      catalog.DataType
	ResultValue   string
	SourceDoctype string
	SourceID      *uuid.UUID
	ParentID      *uuid.UUID
	SpecimenID    *uuid.UUID
	InvoiceRef    *string
	AsOf          time.Time
}

// AddObservation registers a new observation. The permitted data type falls
// back to the template's when the caller does not pin one, the patient's age
// is snapshotted for reference-range matching, and any initial result value
// goes through the same validation and lifecycle derivation as later entry.
func (s *Service) AddObservation(ctx context.Context, in AddObservationInput) (*Observation, error) {
	tmpl, err := s.templates.GetObservationTemplate(ctx, in.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("observation template %s: %w", in.TemplateID, err)
	}
	dataType := in.DataType
	if dataType == "" {
		dataType = tmpl.DataType
	}
	if err := ValidateResult(dataType, in.ResultValue); err != nil {
		return nil, err
	}

	o := &Observation{
		PatientID:         in.PatientID,
		TemplateID:        in.TemplateID,
		DataType:          dataType,
		SourceID:          in.SourceID,
		ParentObservation: in.ParentID,
		SpecimenID:        in.SpecimenID,
		InvoiceRef:        in.InvoiceRef,
	}
	if in.SourceDoctype != "" {
		o.SourceDoctype = &in.SourceDoctype
	}

	if err := s.snapshotPatient(ctx, o, tmpl, in.AsOf); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		if err := s.setObservationIdx(ctx, o, in.ParentID); err != nil {
			return nil, err
		}
	}
	if in.ResultValue != "" {
		setResultField(o, in.ResultValue)
	}

	ApplyLifecycle(o, s.now())
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// RecordResult applies a result value to an observation: grammar validation
// first, then the result field mapped from the permitted data type, then the
// status/timestamp derivation, all under the per-entity lock.
func (s *Service) RecordResult(ctx context.Context, id uuid.UUID, value string) (*Observation, error) {
	var out *Observation
	err := locker.WithLock(ctx, s.locks, "observation:"+id.String(), lockTTL, func() error {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := ValidateResult(o.DataType, value); err != nil {
			return err
		}
		setResultField(o, value)
		if err := s.refreshReference(ctx, o); err != nil {
			return err
		}
		ApplyLifecycle(o, s.now())
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// EditResult changes both the permitted data type and the result of an
// observation, clearing the previously populated result field so exactly one
// remains set.
func (s *Service) EditResult(ctx context.Context, id uuid.UUID, dataType catalog.DataType, value string) (*Observation, error) {
	if err := ValidateResult(dataType, value); err != nil {
		return nil, err
	}
	var out *Observation
	err := locker.WithLock(ctx, s.locks, "observation:"+id.String(), lockTTL, func() error {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		clearResultFields(o)
		o.DataType = dataType
		setResultField(o, value)
		if err := s.refreshReference(ctx, o); err != nil {
			return err
		}
		ApplyLifecycle(o, s.now())
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// AddNote attaches a free-text note without touching the result lifecycle.
func (s *Service) AddNote(ctx context.Context, id uuid.UUID, note string) error {
	if note == "" {
		return fmt.Errorf("note is required")
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	o.Note = &note
	return s.repo.Update(ctx, o)
}

// Approve marks an observation Final and stamps the approval time.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Observation, error) {
	return s.setStatus(ctx, id, StatusFinal)
}

// Cancel is a terminal transition; the record is never deleted. Children of
// a panel root are cancelled along with it.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if _, err := s.setStatus(ctx, id, StatusCancelled); err != nil {
		return err
	}
	children, err := s.repo.ListByParent(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if terminalStatuses[child.Status] {
			continue
		}
		if _, err := s.setStatus(ctx, child.ID, StatusCancelled); err != nil {
			return err
		}
	}
	return nil
}

// MarkEnteredInError flags an observation as recorded in error.
func (s *Service) MarkEnteredInError(ctx context.Context, id uuid.UUID) (*Observation, error) {
	return s.setStatus(ctx, id, StatusEnteredInError)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Observation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Observation, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*Observation, error) {
	return s.repo.ListByParent(ctx, parentID)
}

// allowed direct transitions; everything else must flow through the
// save-time derivation.
var directStatuses = map[Status]bool{
	StatusFinal:          true,
	StatusCancelled:      true,
	StatusEnteredInError: true,
	StatusUnknown:        true,
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status Status) (*Observation, error) {
	if !directStatuses[status] {
		return nil, fmt.Errorf("status %q cannot be set directly", status)
	}
	var out *Observation
	err := locker.WithLock(ctx, s.locks, "observation:"+id.String(), lockTTL, func() error {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		o.Status = status
		DeriveResultTimes(o, s.now())
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// snapshotPatient records the patient's age at registration and renders the
// matching reference ranges against it.
func (s *Service) snapshotPatient(ctx context.Context, o *Observation, tmpl *catalog.ObservationTemplate, asOf time.Time) error {
	p, err := s.patients.GetPatient(ctx, o.PatientID)
	if err != nil {
		return fmt.Errorf("patient %s: %w", o.PatientID, err)
	}
	if p.DOB != nil {
		age, err := s.patients.GetAge(ctx, o.PatientID, asOf)
		if err != nil {
			return err
		}
		display := age.Display
		days := float64(age.InDays)
		o.Age = &display
		o.Days = &days
	}
	var days float64
	if o.Days != nil {
		days = *o.Days
	}
	o.Reference = ResolveReference(tmpl.ReferenceRanges, p.Sex, days)
	return nil
}

// refreshReference re-renders the reference string on save so template rule
// edits show up on the next result entry. The age snapshot is not retaken.
func (s *Service) refreshReference(ctx context.Context, o *Observation) error {
	tmpl, err := s.templates.GetObservationTemplate(ctx, o.TemplateID)
	if err != nil {
		return err
	}
	p, err := s.patients.GetPatient(ctx, o.PatientID)
	if err != nil {
		return err
	}
	var days float64
	if o.Days != nil {
		days = *o.Days
	}
	o.Reference = ResolveReference(tmpl.ReferenceRanges, p.Sex, days)
	return nil
}

// setObservationIdx positions a child observation within its panel by the
// component order declared on the parent's template.
func (s *Service) setObservationIdx(ctx context.Context, o *Observation, parentID *uuid.UUID) error {
	parent, err := s.repo.GetByID(ctx, *parentID)
	if err != nil {
		return fmt.Errorf("parent observation %s: %w", *parentID, err)
	}
	idx, err := s.templates.ComponentIdx(ctx, parent.TemplateID, o.TemplateID)
	if err != nil {
		return err
	}
	o.ObservationIdx = idx
	return nil
}

// setResultField routes a value into the result field the permitted data
// type allows. Range, Ratio, Quantity and Numeric all land in result_data;
// float parsing of Quantity values is deferred to reporting.
func setResultField(o *Observation, value string) {
	switch o.DataType {
	case catalog.DataRange, catalog.DataRatio, catalog.DataQuantity, catalog.DataNumeric:
		o.ResultData = &value
	case catalog.DataText:
		o.ResultText = &value
	case catalog.DataSelect:
		o.ResultSelect = &value
	case catalog.DataBoolean:
		o.ResultBoolean = &value
	default:
		o.ResultData = &value
	}
}

func clearResultFields(o *Observation) {
	o.ResultAttach = nil
	o.ResultBoolean = nil
	o.ResultData = nil
	o.ResultText = nil
	o.ResultFloat = nil
	o.ResultSelect = nil
}
