package notes

import (
	"context"

	"github.com/google/uuid"
)

// NoteRepository is append-only: notes are never updated or deleted.
type NoteRepository interface {
	Create(ctx context.Context, n *ClinicalNote) error
	// ListByPatient returns the patient's notes newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalNote, error)
}
