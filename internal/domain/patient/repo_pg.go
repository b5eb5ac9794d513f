package patient

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/his/his-backend/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var fallback db.Beginner
	if r.pool != nil {
		fallback = r.pool
	}
	return db.RunInTx(ctx, fallback, fn)
}

func (r *repoPG) List(ctx context.Context) ([]*PatientRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.patient_id, p.patient_name, p.age, p.gender,
		       COALESCE(d.diagnosis, $1) AS diagnosis
		FROM patients p
		LEFT JOIN diagnoses d ON p.patient_id = d.patient_id
		ORDER BY p.patient_id`, NoDiagnosisMarker)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	records := []*PatientRecord{}
	for rows.Next() {
		var rec PatientRecord
		if err := rows.Scan(&rec.PatientID, &rec.PatientName, &rec.Age, &rec.Gender, &rec.Diagnosis); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return records, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO patients (patient_name, age, gender) VALUES ($1, $2, $3) RETURNING patient_id`,
		p.Name, p.Age, p.Gender,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET patient_name = $2, age = $3, gender = $4 WHERE patient_id = $1::bigint`,
		p.ID, p.Name, p.Age, p.Gender,
	)
	if err != nil {
		return fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE patient_id = $1::bigint`, id); err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	return nil
}

func (r *repoPG) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO diagnoses (diagnosis, patient_id) VALUES ($1, $2) RETURNING diagnosis_id`,
		d.Text, d.PatientID,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert diagnosis for patient %d: %w", d.PatientID, err)
	}
	return nil
}

// UpsertDiagnosis writes the patient's diagnosis in one statement, so two
// concurrent calls for the same patient cannot both insert.
func (r *repoPG) UpsertDiagnosis(ctx context.Context, d *Diagnosis) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (diagnosis, patient_id) VALUES ($1, $2)
		ON CONFLICT (patient_id) DO UPDATE SET diagnosis = EXCLUDED.diagnosis
		RETURNING diagnosis_id`,
		d.Text, d.PatientID,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("upsert diagnosis for patient %d: %w", d.PatientID, err)
	}
	return nil
}

func (r *repoPG) DeleteDiagnoses(ctx context.Context, patientID int64) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnoses WHERE patient_id = $1::bigint`, patientID); err != nil {
		return fmt.Errorf("delete diagnoses for patient %d: %w", patientID, err)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
