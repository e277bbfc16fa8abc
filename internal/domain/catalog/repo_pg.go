package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow/careflow/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== LabTestTemplate Repository ===========

type labTestTemplateRepoPG struct{ pool *pgxpool.Pool }

func NewLabTestTemplateRepoPG(pool *pgxpool.Pool) LabTestTemplateRepository {
	return &labTestTemplateRepoPG{pool: pool}
}

const labTemplateCols = `id, name, lab_test_description, item_code, patient_care_type, staff_role, department, medical_code, created_at, updated_at`

func (r *labTestTemplateRepoPG) scan(row pgx.Row) (*LabTestTemplate, error) {
	var t LabTestTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.ItemCode, &t.PatientCareType,
		&t.StaffRole, &t.Department, &t.MedicalCode, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *labTestTemplateRepoPG) Create(ctx context.Context, t *LabTestTemplate) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO lab_test_template (id, name, lab_test_description, item_code, patient_care_type, staff_role, department, medical_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.Name, t.Description, t.ItemCode, t.PatientCareType, t.StaffRole, t.Department, t.MedicalCode)
	return err
}

func (r *labTestTemplateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabTestTemplate, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+labTemplateCols+` FROM lab_test_template WHERE id = $1`, id))
}

func (r *labTestTemplateRepoPG) List(ctx context.Context, limit, offset int) ([]*LabTestTemplate, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM lab_test_template`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+labTemplateCols+` FROM lab_test_template ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabTestTemplate
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// =========== ClinicalProcedureTemplate Repository ===========

type procedureTemplateRepoPG struct{ pool *pgxpool.Pool }

func NewClinicalProcedureTemplateRepoPG(pool *pgxpool.Pool) ClinicalProcedureTemplateRepository {
	return &procedureTemplateRepoPG{pool: pool}
}

const procTemplateCols = `id, name, description, item_code, patient_care_type, staff_role, medical_code, created_at, updated_at`

func (r *procedureTemplateRepoPG) scan(row pgx.Row) (*ClinicalProcedureTemplate, error) {
	var t ClinicalProcedureTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.ItemCode, &t.PatientCareType,
		&t.StaffRole, &t.MedicalCode, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *procedureTemplateRepoPG) Create(ctx context.Context, t *ClinicalProcedureTemplate) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO clinical_procedure_template (id, name, description, item_code, patient_care_type, staff_role, medical_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.Name, t.Description, t.ItemCode, t.PatientCareType, t.StaffRole, t.MedicalCode)
	return err
}

func (r *procedureTemplateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalProcedureTemplate, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+procTemplateCols+` FROM clinical_procedure_template WHERE id = $1`, id))
}

func (r *procedureTemplateRepoPG) List(ctx context.Context, limit, offset int) ([]*ClinicalProcedureTemplate, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_procedure_template`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+procTemplateCols+` FROM clinical_procedure_template ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ClinicalProcedureTemplate
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// =========== TherapyType Repository ===========

type therapyTypeRepoPG struct{ pool *pgxpool.Pool }

func NewTherapyTypeRepoPG(pool *pgxpool.Pool) TherapyTypeRepository {
	return &therapyTypeRepoPG{pool: pool}
}

const therapyTypeCols = `id, name, description, department, created_at, updated_at`

func (r *therapyTypeRepoPG) scan(row pgx.Row) (*TherapyType, error) {
	var t TherapyType
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Department, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *therapyTypeRepoPG) Create(ctx context.Context, t *TherapyType) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO therapy_type (id, name, description, department) VALUES ($1,$2,$3,$4)`,
		t.ID, t.Name, t.Description, t.Department)
	return err
}

func (r *therapyTypeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TherapyType, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+therapyTypeCols+` FROM therapy_type WHERE id = $1`, id))
}

func (r *therapyTypeRepoPG) List(ctx context.Context, limit, offset int) ([]*TherapyType, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM therapy_type`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+therapyTypeCols+` FROM therapy_type ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TherapyType
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// =========== HealthcareActivity Repository ===========

type healthcareActivityRepoPG struct{ pool *pgxpool.Pool }

func NewHealthcareActivityRepoPG(pool *pgxpool.Pool) HealthcareActivityRepository {
	return &healthcareActivityRepoPG{pool: pool}
}

const activityCols = `id, name, description, task_kind, created_at, updated_at`

func (r *healthcareActivityRepoPG) scan(row pgx.Row) (*HealthcareActivity, error) {
	var a HealthcareActivity
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.TaskKind, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *healthcareActivityRepoPG) Create(ctx context.Context, a *HealthcareActivity) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO healthcare_activity (id, name, description, task_kind) VALUES ($1,$2,$3,$4)`,
		a.ID, a.Name, a.Description, a.TaskKind)
	return err
}

func (r *healthcareActivityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthcareActivity, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+activityCols+` FROM healthcare_activity WHERE id = $1`, id))
}

func (r *healthcareActivityRepoPG) List(ctx context.Context, limit, offset int) ([]*HealthcareActivity, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM healthcare_activity`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+activityCols+` FROM healthcare_activity ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*HealthcareActivity
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// =========== Medication Repository ===========

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

const medicationCols = `id, name, description, item_code, patient_care_type, staff_role, medical_code, created_at, updated_at`

func (r *medicationRepoPG) scan(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.ItemCode, &m.PatientCareType,
		&m.StaffRole, &m.MedicalCode, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medication (id, name, description, item_code, patient_care_type, staff_role, medical_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.Name, m.Description, m.ItemCode, m.PatientCareType, m.StaffRole, m.MedicalCode)
	return err
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+medicationCols+` FROM medication WHERE id = $1`, id))
}

func (r *medicationRepoPG) List(ctx context.Context, limit, offset int) ([]*Medication, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM medication`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+medicationCols+` FROM medication ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// =========== ObservationTemplate Repository ===========

type observationTemplateRepoPG struct{ pool *pgxpool.Pool }

func NewObservationTemplateRepoPG(pool *pgxpool.Pool) ObservationTemplateRepository {
	return &observationTemplateRepoPG{pool: pool}
}

const obsTemplateCols = `id, name, permitted_data_type, options, has_component, sample, sample_type,
	container_closure_color, uom, sample_qty, item_code, description, created_at, updated_at`

func (r *observationTemplateRepoPG) scan(row pgx.Row) (*ObservationTemplate, error) {
	var t ObservationTemplate
	err := row.Scan(&t.ID, &t.Name, &t.DataType, &t.Options, &t.HasComponent, &t.Sample, &t.SampleType,
		&t.ContainerColor, &t.UOM, &t.SampleQty, &t.ItemCode, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *observationTemplateRepoPG) Create(ctx context.Context, t *ObservationTemplate) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO observation_template (id, name, permitted_data_type, options, has_component, sample,
			sample_type, container_closure_color, uom, sample_qty, item_code, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.Name, t.DataType, t.Options, t.HasComponent, t.Sample,
		t.SampleType, t.ContainerColor, t.UOM, t.SampleQty, t.ItemCode, t.Description)
	if err != nil {
		return err
	}
	for i, c := range t.Components {
		if c.Idx == 0 {
			c.Idx = i + 1
		}
		if _, err := conn(ctx, r.pool).Exec(ctx, `
			INSERT INTO observation_template_component (parent_id, observation_template_id, idx)
			VALUES ($1,$2,$3)`, t.ID, c.TemplateID, c.Idx); err != nil {
			return err
		}
	}
	for i, rr := range t.ReferenceRanges {
		if _, err := conn(ctx, r.pool).Exec(ctx, `
			INSERT INTO observation_reference_range (parent_id, idx, applies_to, age, age_from, age_to,
				from_age_type, to_age_type, reference_from, reference_to, conditions, short_interpretation)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			t.ID, i+1, rr.AppliesTo, rr.Age, rr.AgeFrom, rr.AgeTo,
			rr.FromAgeType, rr.ToAgeType, rr.ReferenceFrom, rr.ReferenceTo, rr.Conditions, rr.ShortInterpretation); err != nil {
			return err
		}
	}
	return nil
}

func (r *observationTemplateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ObservationTemplate, error) {
	t, err := r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+obsTemplateCols+` FROM observation_template WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT observation_template_id, idx FROM observation_template_component
		WHERE parent_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c ObservationComponent
		if err := rows.Scan(&c.TemplateID, &c.Idx); err != nil {
			return nil, err
		}
		t.Components = append(t.Components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rrRows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT applies_to, age, age_from, age_to, from_age_type, to_age_type,
			reference_from, reference_to, conditions, short_interpretation
		FROM observation_reference_range WHERE parent_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rrRows.Close()
	for rrRows.Next() {
		var rr ReferenceRangeRule
		if err := rrRows.Scan(&rr.AppliesTo, &rr.Age, &rr.AgeFrom, &rr.AgeTo, &rr.FromAgeType, &rr.ToAgeType,
			&rr.ReferenceFrom, &rr.ReferenceTo, &rr.Conditions, &rr.ShortInterpretation); err != nil {
			return nil, err
		}
		t.ReferenceRanges = append(t.ReferenceRanges, rr)
	}
	if err := rrRows.Err(); err != nil {
		return nil, err
	}

	return t, nil
}

func (r *observationTemplateRepoPG) List(ctx context.Context, limit, offset int) ([]*ObservationTemplate, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM observation_template`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+obsTemplateCols+` FROM observation_template ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ObservationTemplate
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *observationTemplateRepoPG) ComponentIdx(ctx context.Context, parentTemplateID, childTemplateID uuid.UUID) (int, error) {
	var idx int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT idx FROM observation_template_component
		WHERE parent_id = $1 AND observation_template_id = $2`, parentTemplateID, childTemplateID).Scan(&idx)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return idx, err
}
