package patient

import "errors"

// NoDiagnosisMarker is returned in place of a diagnosis for patients that
// have none ("no data yet").
const NoDiagnosisMarker = "ยังไม่มีข้อมูล"

var ErrInvalidPatientID = errors.New("invalid patient id")

// Patient is a row of the patients table. Columns are nullable because the
// API accepts requests without them.
type Patient struct {
	ID     int64   `json:"patient_id"`
	Name   *string `json:"patient_name"`
	Age    *int    `json:"age"`
	Gender *string `json:"gender"`
}

// Diagnosis is a row of the diagnoses table; at most one exists per patient.
type Diagnosis struct {
	ID        int64   `json:"-"`
	PatientID int64   `json:"patient_id"`
	Text      *string `json:"diagnosis"`
}

// PatientRecord is a patient joined with its diagnosis, as listed by GET /patients.
type PatientRecord struct {
	PatientID   int64   `json:"patient_id"`
	PatientName *string `json:"patient_name"`
	Age         *int    `json:"age"`
	Gender      *string `json:"gender"`
	Diagnosis   string  `json:"diagnosis"`
}

// PatientInput is the body of POST /patients and PUT /patients/:id.
type PatientInput struct {
	PatientName *string `json:"patient_name"`
	Age         *int    `json:"age"`
	Gender      *string `json:"gender"`
	Diagnosis   *string `json:"diagnosis"`
}

// HasDiagnosis reports whether the input carries a non-empty diagnosis.
func (in *PatientInput) HasDiagnosis() bool {
	return in.Diagnosis != nil && *in.Diagnosis != ""
}

func (in *PatientInput) patient(id int64) *Patient {
	return &Patient{
		ID:     id,
		Name:   in.PatientName,
		Age:    in.Age,
		Gender: in.Gender,
	}
}
