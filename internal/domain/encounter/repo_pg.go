package encounter

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

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// Create inserts the encounter and all its prescription lines atomically.
func (r *repoPG) Create(ctx context.Context, e *PatientEncounter) error {
	if db.ConnFromContext(ctx) == nil {
		return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
			return r.create(ctx, e)
		})
	}
	return r.create(ctx, e)
}

func (r *repoPG) create(ctx context.Context, e *PatientEncounter) error {
	e.ID = uuid.New()
	q := r.conn(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO patient_encounter (id, title, patient_id, practitioner_id, status, encounter_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.Title, e.PatientID, e.PractitionerID, e.Status, e.EncounterDate)
	if err != nil {
		return err
	}
	for i, lt := range e.LabTests {
		if _, err := q.Exec(ctx, `
			INSERT INTO encounter_lab_prescription (encounter_id, idx, template_id, priority, invoiced)
			VALUES ($1,$2,$3,$4,$5)`,
			e.ID, i+1, lt.TemplateID, lt.Priority, lt.Invoiced); err != nil {
			return err
		}
	}
	for i, p := range e.Procedures {
		if _, err := q.Exec(ctx, `
			INSERT INTO encounter_procedure_prescription (encounter_id, idx, template_id, priority, invoiced)
			VALUES ($1,$2,$3,$4,$5)`,
			e.ID, i+1, p.TemplateID, p.Priority, p.Invoiced); err != nil {
			return err
		}
	}
	for i, th := range e.Therapies {
		if _, err := q.Exec(ctx, `
			INSERT INTO encounter_therapy_line (encounter_id, idx, therapy_type_id, sessions)
			VALUES ($1,$2,$3,$4)`,
			e.ID, i+1, th.TherapyTypeID, th.Sessions); err != nil {
			return err
		}
	}
	for i, obs := range e.Observations {
		if _, err := q.Exec(ctx, `
			INSERT INTO encounter_observation_line (encounter_id, idx, template_id)
			VALUES ($1,$2,$3)`,
			e.ID, i+1, obs.TemplateID); err != nil {
			return err
		}
	}
	for i, d := range e.Drugs {
		if _, err := q.Exec(ctx, `
			INSERT INTO encounter_drug_prescription (
				encounter_id, idx, medication_id, item_code, dosage, dosage_form, doses_per_day, period_days, as_needed, number_of_repeats
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			e.ID, i+1, d.MedicationID, d.ItemCode, d.Dosage, d.DosageForm, d.DosesPerDay, d.PeriodDays, d.AsNeeded, d.NumberOfRepeats); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientEncounter, error) {
	q := r.conn(ctx)
	var e PatientEncounter
	err := q.QueryRow(ctx, `
		SELECT id, title, patient_id, practitioner_id, status, encounter_date, created_at, updated_at
		FROM patient_encounter WHERE id = $1`, id).Scan(
		&e.ID, &e.Title, &e.PatientID, &e.PractitionerID, &e.Status, &e.EncounterDate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT template_id, priority, invoiced FROM encounter_lab_prescription
		WHERE encounter_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var lt LabPrescription
		if err := rows.Scan(&lt.TemplateID, &lt.Priority, &lt.Invoiced); err != nil {
			rows.Close()
			return nil, err
		}
		e.LabTests = append(e.LabTests, lt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT template_id, priority, invoiced FROM encounter_procedure_prescription
		WHERE encounter_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p ProcedurePrescription
		if err := rows.Scan(&p.TemplateID, &p.Priority, &p.Invoiced); err != nil {
			rows.Close()
			return nil, err
		}
		e.Procedures = append(e.Procedures, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT therapy_type_id, sessions FROM encounter_therapy_line
		WHERE encounter_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var th TherapyLine
		if err := rows.Scan(&th.TherapyTypeID, &th.Sessions); err != nil {
			rows.Close()
			return nil, err
		}
		e.Therapies = append(e.Therapies, th)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT template_id FROM encounter_observation_line
		WHERE encounter_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var obs ObservationLine
		if err := rows.Scan(&obs.TemplateID); err != nil {
			rows.Close()
			return nil, err
		}
		e.Observations = append(e.Observations, obs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT medication_id, item_code, dosage, dosage_form, doses_per_day, period_days, as_needed, number_of_repeats
		FROM encounter_drug_prescription WHERE encounter_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var d DrugPrescription
		if err := rows.Scan(&d.MedicationID, &d.ItemCode, &d.Dosage, &d.DosageForm, &d.DosesPerDay, &d.PeriodDays, &d.AsNeeded, &d.NumberOfRepeats); err != nil {
			rows.Close()
			return nil, err
		}
		e.Drugs = append(e.Drugs, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_encounter SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*PatientEncounter, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient_encounter`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, title, patient_id, practitioner_id, status, encounter_date, created_at, updated_at
		FROM patient_encounter ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientEncounter
	for rows.Next() {
		var e PatientEncounter
		if err := rows.Scan(&e.ID, &e.Title, &e.PatientID, &e.PractitionerID, &e.Status, &e.EncounterDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
