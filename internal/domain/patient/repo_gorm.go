package patient

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type patientRow struct {
	PatientID   int64   `gorm:"column:patient_id;primaryKey"`
	PatientName *string `gorm:"column:patient_name"`
	Age         *int    `gorm:"column:age"`
	Gender      *string `gorm:"column:gender"`
}

func (patientRow) TableName() string { return "patients" }

type diagnosisRow struct {
	DiagnosisID int64   `gorm:"column:diagnosis_id;primaryKey"`
	Diagnosis   *string `gorm:"column:diagnosis"`
	PatientID   int64   `gorm:"column:patient_id"`
}

func (diagnosisRow) TableName() string { return "diagnoses" }

type gormTxKey struct{}

type repoGorm struct {
	gdb *gorm.DB
}

// NewRepoGorm returns a Repository backed by gorm. It expects the schema
// created by db.ApplySchema; it never auto-migrates.
func NewRepoGorm(gdb *gorm.DB) Repository {
	return &repoGorm{gdb: gdb}
}

func (r *repoGorm) db(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.gdb.WithContext(ctx)
}

func (r *repoGorm) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormTxKey{}, tx))
	})
}

func (r *repoGorm) List(ctx context.Context) ([]*PatientRecord, error) {
	records := []*PatientRecord{}
	err := r.db(ctx).
		Table("patients AS p").
		Select("p.patient_id, p.patient_name, p.age, p.gender, COALESCE(d.diagnosis, ?) AS diagnosis", NoDiagnosisMarker).
		Joins("LEFT JOIN diagnoses d ON p.patient_id = d.patient_id").
		Order("p.patient_id").
		Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	return records, nil
}

func (r *repoGorm) Create(ctx context.Context, p *Patient) error {
	row := patientRow{PatientName: p.Name, Age: p.Age, Gender: p.Gender}
	if err := r.db(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	p.ID = row.PatientID
	return nil
}

func (r *repoGorm) Update(ctx context.Context, p *Patient) error {
	err := r.db(ctx).Model(&patientRow{}).
		Where("patient_id = CAST(? AS BIGINT)", p.ID).
		Updates(map[string]interface{}{
			"patient_name": p.Name,
			"age":          p.Age,
			"gender":       p.Gender,
		}).Error
	if err != nil {
		return fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	return nil
}

func (r *repoGorm) Delete(ctx context.Context, id int64) error {
	if err := r.db(ctx).Where("patient_id = CAST(? AS BIGINT)", id).Delete(&patientRow{}).Error; err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	return nil
}

func (r *repoGorm) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	row := diagnosisRow{Diagnosis: d.Text, PatientID: d.PatientID}
	if err := r.db(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert diagnosis for patient %d: %w", d.PatientID, err)
	}
	d.ID = row.DiagnosisID
	return nil
}

func (r *repoGorm) UpsertDiagnosis(ctx context.Context, d *Diagnosis) error {
	row := diagnosisRow{Diagnosis: d.Text, PatientID: d.PatientID}
	err := r.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "patient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"diagnosis"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert diagnosis for patient %d: %w", d.PatientID, err)
	}
	d.ID = row.DiagnosisID
	return nil
}

func (r *repoGorm) DeleteDiagnoses(ctx context.Context, patientID int64) error {
	if err := r.db(ctx).Where("patient_id = CAST(? AS BIGINT)", patientID).Delete(&diagnosisRow{}).Error; err != nil {
		return fmt.Errorf("delete diagnoses for patient %d: %w", patientID, err)
	}
	return nil
}
