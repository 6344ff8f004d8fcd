package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	notes NoteRepository
}

func NewService(notes NoteRepository) *Service {
	return &Service{notes: notes}
}

func (s *Service) AddNote(ctx context.Context, patientID uuid.UUID, in NewNote) (*ClinicalNote, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if !validNoteTypes[in.Type] {
		return nil, fmt.Errorf("invalid note type: %s", in.Type)
	}
	if in.Content == nil || strings.TrimSpace(Encode(in.Content)) == "" {
		return nil, fmt.Errorf("content is required")
	}
	if in.Author.Name == "" {
		return nil, fmt.Errorf("author is required")
	}
	n := &ClinicalNote{
		PatientID:  patientID,
		Type:       in.Type,
		Content:    in.Content,
		AuthorName: in.Author.Name,
		AuthorRole: in.Author.Role,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*ClinicalNote, error) {
	return s.notes.ListByPatient(ctx, patientID)
}

func (s *Service) Timeline(ctx context.Context, patientID uuid.UUID) ([]TimelineEntry, error) {
	items, err := s.notes.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return Reconcile(items), nil
}
