package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

type mockObsTemplateRepo struct {
	templates map[uuid.UUID]*ObservationTemplate
}

func newMockObsTemplateRepo() *mockObsTemplateRepo {
	return &mockObsTemplateRepo{templates: make(map[uuid.UUID]*ObservationTemplate)}
}

func (m *mockObsTemplateRepo) Create(ctx context.Context, t *ObservationTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.templates[t.ID] = t
	return nil
}

func (m *mockObsTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*ObservationTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("observation template not found: %s", id)
	}
	return t, nil
}

func (m *mockObsTemplateRepo) List(ctx context.Context, limit, offset int) ([]*ObservationTemplate, int, error) {
	var out []*ObservationTemplate
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockObsTemplateRepo) ComponentIdx(ctx context.Context, parentTemplateID, childTemplateID uuid.UUID) (int, error) {
	parent, ok := m.templates[parentTemplateID]
	if !ok {
		return 0, nil
	}
	for _, c := range parent.Components {
		if c.TemplateID == childTemplateID {
			return c.Idx, nil
		}
	}
	return 0, nil
}

func newTestService(obs ObservationTemplateRepository) *Service {
	return NewService(nil, nil, nil, nil, nil, obs)
}

func TestCreateObservationTemplate_RequiresName(t *testing.T) {
	svc := newTestService(newMockObsTemplateRepo())

	err := svc.CreateObservationTemplate(context.Background(), &ObservationTemplate{})
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestCreateObservationTemplate_RejectsUnknownDataType(t *testing.T) {
	svc := newTestService(newMockObsTemplateRepo())

	err := svc.CreateObservationTemplate(context.Background(), &ObservationTemplate{
		Name:     "Glucose",
		DataType: DataType("Image"),
	})
	if err == nil {
		t.Fatal("expected error for unknown permitted data type")
	}
}

func TestCreateObservationTemplate_PanelNeedsComponents(t *testing.T) {
	svc := newTestService(newMockObsTemplateRepo())

	err := svc.CreateObservationTemplate(context.Background(), &ObservationTemplate{
		Name:         "CBC",
		HasComponent: true,
	})
	if err == nil {
		t.Fatal("expected error for panel without components")
	}
}

func TestCreateObservationTemplate_ValidatesReferenceRanges(t *testing.T) {
	svc := newTestService(newMockObsTemplateRepo())

	err := svc.CreateObservationTemplate(context.Background(), &ObservationTemplate{
		Name:     "Hemoglobin",
		DataType: DataQuantity,
		ReferenceRanges: []ReferenceRangeRule{
			{AppliesTo: "Everyone", Age: "All"},
		},
	})
	if err == nil {
		t.Fatal("expected error for invalid applies_to")
	}

	err = svc.CreateObservationTemplate(context.Background(), &ObservationTemplate{
		Name:     "Hemoglobin",
		DataType: DataQuantity,
		ReferenceRanges: []ReferenceRangeRule{
			{AppliesTo: "Male", Age: "Adult"},
		},
	})
	if err == nil {
		t.Fatal("expected error for invalid age selector")
	}
}

func TestCreateObservationTemplate_Valid(t *testing.T) {
	repo := newMockObsTemplateRepo()
	svc := newTestService(repo)

	from, to := "13.0", "17.0"
	tmpl := &ObservationTemplate{
		Name:     "Hemoglobin",
		DataType: DataQuantity,
		ReferenceRanges: []ReferenceRangeRule{
			{AppliesTo: "Male", Age: "All", ReferenceFrom: &from, ReferenceTo: &to},
		},
	}
	if err := svc.CreateObservationTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.templates[tmpl.ID]; !ok {
		t.Error("expected template to be persisted")
	}
}

func TestComponentIdx(t *testing.T) {
	repo := newMockObsTemplateRepo()
	svc := newTestService(repo)

	leaf := uuid.New()
	panel := &ObservationTemplate{
		Name:         "CBC",
		HasComponent: true,
		Components:   []ObservationComponent{{TemplateID: leaf, Idx: 3}},
	}
	if err := svc.CreateObservationTemplate(context.Background(), panel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	idx, err := svc.ComponentIdx(context.Background(), panel.ID, leaf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 3 {
		t.Errorf("expected idx 3, got %d", idx)
	}

	idx, err = svc.ComponentIdx(context.Background(), panel.ID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected idx 0 for non-component, got %d", idx)
	}
}
