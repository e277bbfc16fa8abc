package observation

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

const observationCols = `id, patient_id, observation_template_id, permitted_data_type, status,
	result_attach, result_boolean, result_data, result_text, result_float, result_select,
	time_of_result, time_of_approval, age, days, reference,
	amended_from, parent_observation, observation_idx,
	source_doctype, source_id, specimen_id, invoice_ref, note, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Observation, error) {
	var o Observation
	err := row.Scan(
		&o.ID, &o.PatientID, &o.TemplateID, &o.DataType, &o.Status,
		&o.ResultAttach, &o.ResultBoolean, &o.ResultData, &o.ResultText, &o.ResultFloat, &o.ResultSelect,
		&o.TimeOfResult, &o.TimeOfApproval, &o.Age, &o.Days, &o.Reference,
		&o.AmendedFrom, &o.ParentObservation, &o.ObservationIdx,
		&o.SourceDoctype, &o.SourceID, &o.SpecimenID, &o.InvoiceRef, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *repoPG) Create(ctx context.Context, o *Observation) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO observation (
			id, patient_id, observation_template_id, permitted_data_type, status,
			result_attach, result_boolean, result_data, result_text, result_float, result_select,
			time_of_result, time_of_approval, age, days, reference,
			amended_from, parent_observation, observation_idx,
			source_doctype, source_id, specimen_id, invoice_ref, note
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		o.ID, o.PatientID, o.TemplateID, o.DataType, o.Status,
		o.ResultAttach, o.ResultBoolean, o.ResultData, o.ResultText, o.ResultFloat, o.ResultSelect,
		o.TimeOfResult, o.TimeOfApproval, o.Age, o.Days, o.Reference,
		o.AmendedFrom, o.ParentObservation, o.ObservationIdx,
		o.SourceDoctype, o.SourceID, o.SpecimenID, o.InvoiceRef, o.Note)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Observation, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+observationCols+` FROM observation WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, o *Observation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE observation SET
			permitted_data_type = $2, status = $3,
			result_attach = $4, result_boolean = $5, result_data = $6,
			result_text = $7, result_float = $8, result_select = $9,
			time_of_result = $10, time_of_approval = $11,
			age = $12, days = $13, reference = $14,
			amended_from = $15, note = $16, updated_at = now()
		WHERE id = $1`,
		o.ID, o.DataType, o.Status,
		o.ResultAttach, o.ResultBoolean, o.ResultData,
		o.ResultText, o.ResultFloat, o.ResultSelect,
		o.TimeOfResult, o.TimeOfApproval,
		o.Age, o.Days, o.Reference,
		o.AmendedFrom, o.Note)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Observation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM observation WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+observationCols+` FROM observation
		WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Observation
	for rows.Next() {
		o, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*Observation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+observationCols+` FROM observation
		WHERE parent_observation = $1
		ORDER BY observation_idx`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Observation
	for rows.Next() {
		o, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
