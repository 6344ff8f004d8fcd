package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ehr/uropathway/internal/domain/scheduling"
)

var ErrNotFound = errors.New("patient not found")

type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// UpdatePathway sets the patient's pathway, appends change to the history
	// and books followUp when non-nil, all in one transaction. It fills in
	// change.FromPathway with the pathway being replaced.
	UpdatePathway(ctx context.Context, change *PathwayChange, followUp *scheduling.Appointment) error
	ListPathwayChanges(ctx context.Context, patientID uuid.UUID) ([]*PathwayChange, error)
	CreateDischargeSummary(ctx context.Context, ds *DischargeSummary) error
}
