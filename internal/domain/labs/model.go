package labs

import (
	"time"

	"github.com/google/uuid"
)

// PSAResult is an immutable PSA lab value.
type PSAResult struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Value     float64   `db:"value" json:"value"`
	// ValueText is the value as recorded, possibly with a unit suffix.
	ValueText string    `db:"value_text" json:"value_text"`
	TestDate  time.Time `db:"test_date" json:"test_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Reading converts a stored result into velocity input.
func (r *PSAResult) Reading() Reading {
	var v any = r.Value
	if r.ValueText != "" {
		v = r.ValueText
	}
	return Reading{Value: v, Date: r.TestDate.Format("2006-01-02")}
}
