package patient

import "context"

// Repository is the store collaborator of the patient service. Methods called
// inside WithinTx's callback must use the context it receives so they join the
// transaction.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	List(ctx context.Context) ([]*PatientRecord, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error

	// Diagnoses
	CreateDiagnosis(ctx context.Context, d *Diagnosis) error
	UpsertDiagnosis(ctx context.Context, d *Diagnosis) error
	DeleteDiagnoses(ctx context.Context, patientID int64) error
}
