package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the patient directory consumed by the order and observation
// workflows: demographics lookups and age resolution against a reference
// date.
type Service struct {
	patients PatientRepository
	now      func() time.Time
}

func NewService(patients PatientRepository) *Service {
	return &Service{patients: patients, now: time.Now}
}

var validSexes = map[string]bool{"Male": true, "Female": true, "Other": true}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Sex == "" {
		p.Sex = "Other"
	}
	if !validSexes[p.Sex] {
		return fmt.Errorf("invalid sex: %s", p.Sex)
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// GetDOB returns the patient's date of birth.
func (s *Service) GetDOB(ctx context.Context, id uuid.UUID) (time.Time, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if p.DOB == nil {
		return time.Time{}, fmt.Errorf("patient %s has no date of birth recorded", id)
	}
	return *p.DOB, nil
}

// GetAge resolves the patient's age as of the given reference date. A zero
// asOf resolves against the current time, matching result entry flows where
// no prior posting date exists.
func (s *Service) GetAge(ctx context.Context, id uuid.UUID, asOf time.Time) (Age, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return Age{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return p.AgeAt(asOf)
}
