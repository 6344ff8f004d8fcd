package mdt

import (
	"context"

	"github.com/google/uuid"
)

type MeetingRepository interface {
	// ListByPatient returns meetings newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Meeting, error)
}
