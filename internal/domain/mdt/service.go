package mdt

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	meetings MeetingRepository
}

func NewService(meetings MeetingRepository) *Service {
	return &Service{meetings: meetings}
}

func (s *Service) ListMeetings(ctx context.Context, patientID uuid.UUID) ([]*Meeting, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	return s.meetings.ListByPatient(ctx, patientID)
}
