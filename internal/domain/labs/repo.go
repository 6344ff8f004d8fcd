package labs

import (
	"context"

	"github.com/google/uuid"
)

type PSARepository interface {
	Create(ctx context.Context, r *PSAResult) error
	// ListByPatient returns results ordered by test date, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PSAResult, error)
}
