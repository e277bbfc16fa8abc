package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow/careflow/internal/domain/catalog"
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

type serviceRequestRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRequestRepoPG(pool *pgxpool.Pool) ServiceRequestRepository {
	return &serviceRequestRepoPG{pool: pool}
}

const srCols = `id, title, order_group, patient_id, practitioner_id, template_type, template_id,
	item_code, patient_care_type, staff_role, medical_code, department,
	intent, priority, status, quantity, qty_invoiced, billing_status,
	occurrence_date, occurrence_time,
	dosage, dosage_form, period, as_needed, number_of_repeats,
	repeat_in_every, task_done_at, amended_from,
	created_at, updated_at`

func (r *serviceRequestRepoPG) scan(row pgx.Row) (*ServiceRequest, error) {
	var sr ServiceRequest
	err := row.Scan(
		&sr.ID, &sr.Title, &sr.OrderGroup, &sr.PatientID, &sr.PractitionerID, &sr.TemplateType, &sr.TemplateID,
		&sr.ItemCode, &sr.PatientCareType, &sr.StaffRole, &sr.MedicalCode, &sr.Department,
		&sr.Intent, &sr.Priority, &sr.Status, &sr.Quantity, &sr.QtyInvoiced, &sr.BillingStatus,
		&sr.OccurrenceDate, &sr.OccurrenceTime,
		&sr.Dosage, &sr.DosageForm, &sr.Period, &sr.AsNeeded, &sr.NumberOfRepeats,
		&sr.RepeatInEvery, &sr.TaskDoneAt, &sr.AmendedFrom,
		&sr.CreatedAt, &sr.UpdatedAt)
	return &sr, err
}

func (r *serviceRequestRepoPG) Create(ctx context.Context, sr *ServiceRequest) error {
	sr.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO service_request (
			id, title, order_group, patient_id, practitioner_id, template_type, template_id,
			item_code, patient_care_type, staff_role, medical_code, department,
			intent, priority, status, quantity, qty_invoiced, billing_status,
			occurrence_date, occurrence_time,
			dosage, dosage_form, period, as_needed, number_of_repeats,
			repeat_in_every, task_done_at, amended_from
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)`,
		sr.ID, sr.Title, sr.OrderGroup, sr.PatientID, sr.PractitionerID, sr.TemplateType, sr.TemplateID,
		sr.ItemCode, sr.PatientCareType, sr.StaffRole, sr.MedicalCode, sr.Department,
		sr.Intent, sr.Priority, sr.Status, sr.Quantity, sr.QtyInvoiced, sr.BillingStatus,
		sr.OccurrenceDate, sr.OccurrenceTime,
		sr.Dosage, sr.DosageForm, sr.Period, sr.AsNeeded, sr.NumberOfRepeats,
		sr.RepeatInEvery, sr.TaskDoneAt, sr.AmendedFrom)
	return err
}

func (r *serviceRequestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+srCols+` FROM service_request WHERE id = $1`, id))
}

func (r *serviceRequestRepoPG) Update(ctx context.Context, sr *ServiceRequest) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE service_request SET
			title = $2, status = $3, intent = $4, priority = $5,
			item_code = $6, patient_care_type = $7, staff_role = $8, medical_code = $9, department = $10,
			quantity = $11, qty_invoiced = $12, billing_status = $13,
			occurrence_date = $14, occurrence_time = $15,
			dosage = $16, dosage_form = $17, period = $18, as_needed = $19, number_of_repeats = $20,
			repeat_in_every = $21, task_done_at = $22, amended_from = $23,
			updated_at = now()
		WHERE id = $1`,
		sr.ID, sr.Title, sr.Status, sr.Intent, sr.Priority,
		sr.ItemCode, sr.PatientCareType, sr.StaffRole, sr.MedicalCode, sr.Department,
		sr.Quantity, sr.QtyInvoiced, sr.BillingStatus,
		sr.OccurrenceDate, sr.OccurrenceTime,
		sr.Dosage, sr.DosageForm, sr.Period, sr.AsNeeded, sr.NumberOfRepeats,
		sr.RepeatInEvery, sr.TaskDoneAt, sr.AmendedFrom)
	return err
}

func (r *serviceRequestRepoPG) List(ctx context.Context, limit, offset int) ([]*ServiceRequest, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM service_request`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+srCols+` FROM service_request ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *serviceRequestRepoPG) ListByOrderGroup(ctx context.Context, orderGroup uuid.UUID) ([]*ServiceRequest, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+srCols+` FROM service_request WHERE order_group = $1 ORDER BY created_at`, orderGroup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *serviceRequestRepoPG) ExistsByOrderGroupAndTemplate(ctx context.Context, orderGroup, templateID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM service_request WHERE order_group = $1 AND template_id = $2)`,
		orderGroup, templateID).Scan(&exists)
	return exists, err
}

func (r *serviceRequestRepoPG) ListActiveRepeating(ctx context.Context, templateType catalog.TemplateType) ([]*ServiceRequest, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+srCols+` FROM service_request
		WHERE template_type = $1 AND status = $2 AND repeat_in_every > 0`,
		templateType, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *serviceRequestRepoPG) collect(rows pgx.Rows) ([]*ServiceRequest, error) {
	var items []*ServiceRequest
	for rows.Next() {
		sr, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type activityRepoPG struct{ pool *pgxpool.Pool }

func NewActivityRepoPG(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepoPG{pool: pool}
}

func (r *activityRepoPG) CreateLabTest(ctx context.Context, lt *LabTest) error {
	lt.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO lab_test (
			id, service_request_id, template_id, patient_id, patient_name, patient_sex, patient_age,
			email, mobile, practitioner_id, requesting_department, date, time, invoiced, medical_code
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		lt.ID, lt.ServiceRequestID, lt.TemplateID, lt.PatientID, lt.PatientName, lt.PatientSex, lt.PatientAge,
		lt.Email, lt.Mobile, lt.PractitionerID, lt.RequestingDept, lt.Date, lt.Time, lt.Invoiced, lt.MedicalCode)
	return err
}

func (r *activityRepoPG) CreateClinicalProcedure(ctx context.Context, cp *ClinicalProcedure) error {
	cp.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO clinical_procedure (
			id, service_request_id, template_id, patient_id, patient_name, patient_sex, patient_age,
			practitioner_id, start_date, start_time, department, medical_code
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		cp.ID, cp.ServiceRequestID, cp.TemplateID, cp.PatientID, cp.PatientName, cp.PatientSex, cp.PatientAge,
		cp.PractitionerID, cp.StartDate, cp.StartTime, cp.Department, cp.MedicalCode)
	return err
}

func (r *activityRepoPG) CreateTherapySession(ctx context.Context, ts *TherapySession) error {
	ts.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO therapy_session (
			id, service_request_id, therapy_type_id, patient_id, patient_name, patient_sex, patient_age,
			practitioner_id, department, start_date, start_time, invoiced
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		ts.ID, ts.ServiceRequestID, ts.TherapyTypeID, ts.PatientID, ts.PatientName, ts.PatientSex, ts.PatientAge,
		ts.PractitionerID, ts.Department, ts.StartDate, ts.StartTime, ts.Invoiced)
	return err
}

func (r *activityRepoPG) CreateNursingTask(ctx context.Context, nt *NursingTask) error {
	nt.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO nursing_task (
			id, service_request_id, activity_id, patient_id, patient_name, patient_sex,
			practitioner_id, requested_start_time, description, task_kind, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		nt.ID, nt.ServiceRequestID, nt.ActivityID, nt.PatientID, nt.PatientName, nt.PatientSex,
		nt.PractitionerID, nt.RequestedStartTime, nt.Description, nt.TaskKind, nt.Status)
	return err
}

func (r *activityRepoPG) CreateMedicationRequest(ctx context.Context, mr *MedicationRequest) error {
	mr.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medication_request (
			id, order_group, patient_id, practitioner_id, medication_id, status, intent, priority,
			quantity, dosage, dosage_form, period, as_needed, number_of_repeats, description, expected_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		mr.ID, mr.OrderGroup, mr.PatientID, mr.PractitionerID, mr.MedicationID, mr.Status, mr.Intent, mr.Priority,
		mr.Quantity, mr.Dosage, mr.DosageForm, mr.Period, mr.AsNeeded, mr.NumberOfRepeats, mr.Description, mr.ExpectedDate)
	return err
}

func (r *activityRepoPG) CreateSampleCollection(ctx context.Context, sc *SampleCollection) error {
	sc.ID = uuid.New()
	q := conn(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO sample_collection (id, service_request_id, patient_id, patient_sex, patient_age)
		VALUES ($1,$2,$3,$4,$5)`,
		sc.ID, sc.ServiceRequestID, sc.PatientID, sc.PatientSex, sc.PatientAge)
	if err != nil {
		return err
	}
	for _, line := range sc.Lines {
		_, err := q.Exec(ctx, `
			INSERT INTO sample_collection_line (
				sample_collection_id, observation_template_id, sample, sample_type, container_closure_color, uom, sample_qty
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			sc.ID, line.TemplateID, line.Sample, line.SampleType, line.ContainerColor, line.UOM, line.SampleQty)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *activityRepoPG) ListNursingTasksByRequest(ctx context.Context, serviceRequestID uuid.UUID) ([]*NursingTask, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, service_request_id, activity_id, patient_id, patient_name, patient_sex,
			practitioner_id, requested_start_time, description, task_kind, status, created_at
		FROM nursing_task WHERE service_request_id = $1 ORDER BY requested_start_time DESC`, serviceRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*NursingTask
	for rows.Next() {
		var nt NursingTask
		if err := rows.Scan(
			&nt.ID, &nt.ServiceRequestID, &nt.ActivityID, &nt.PatientID, &nt.PatientName, &nt.PatientSex,
			&nt.PractitionerID, &nt.RequestedStartTime, &nt.Description, &nt.TaskKind, &nt.Status, &nt.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &nt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *activityRepoPG) CompleteOpenNursingTasks(ctx context.Context, serviceRequestID uuid.UUID) (int, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE nursing_task SET status = $2
		WHERE service_request_id = $1 AND status <> $2`,
		serviceRequestID, TaskStatusCompleted)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
