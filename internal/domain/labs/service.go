package labs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	results PSARepository
	now     func() time.Time
}

func NewService(results PSARepository) *Service {
	return &Service{results: results, now: time.Now}
}

// RecordRequest is a PSA value as entered by a clinician.
type RecordRequest struct {
	Value    any    `json:"value"`
	TestDate string `json:"test_date"`
}

func (s *Service) Record(ctx context.Context, patientID uuid.UUID, req RecordRequest) (*PSAResult, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	value, err := ParseValue(req.Value)
	if err != nil {
		return nil, err
	}
	if value < 0 {
		return nil, fmt.Errorf("PSA value must not be negative")
	}
	testDate, err := ParseReadingDate(req.TestDate)
	if err != nil {
		return nil, err
	}
	if testDate.After(s.now()) {
		return nil, fmt.Errorf("test_date must not be in the future")
	}
	res := &PSAResult{
		PatientID: patientID,
		Value:     value,
		ValueText: fmt.Sprint(req.Value),
		TestDate:  testDate,
	}
	if err := s.results.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) ListResults(ctx context.Context, patientID uuid.UUID) ([]*PSAResult, error) {
	return s.results.ListByPatient(ctx, patientID)
}

// Velocity computes the patient's current PSA velocity from stored results.
func (s *Service) Velocity(ctx context.Context, patientID uuid.UUID) (Velocity, error) {
	items, err := s.results.ListByPatient(ctx, patientID)
	if err != nil {
		return Velocity{}, err
	}
	readings := make([]Reading, len(items))
	for i, r := range items {
		readings[i] = r.Reading()
	}
	return CalculateVelocity(readings), nil
}
