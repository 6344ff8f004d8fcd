package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	appts AppointmentRepository
}

func NewService(appts AppointmentRepository) *Service {
	return &Service{appts: appts}
}

func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req BookingRequest) (*Appointment, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("date is required")
	}
	if !ValidTimeOfDay(req.Time) {
		return nil, fmt.Errorf("time must be HH:MM, got %q", req.Time)
	}
	if req.ClinicianID == "" {
		return nil, fmt.Errorf("clinician_id is required")
	}
	if !validAppointmentTypes[req.Type] {
		return nil, fmt.Errorf("invalid appointment type: %s", req.Type)
	}
	if req.Priority != "" && !validPriorities[req.Priority] {
		return nil, fmt.Errorf("invalid priority: %s", req.Priority)
	}

	a := &Appointment{
		PatientID:     patientID,
		Date:          DateOnly(req.Date),
		Time:          req.Time,
		Type:          req.Type,
		ClinicianID:   req.ClinicianID,
		ClinicianName: req.ClinicianName,
		Notes:         req.Notes,
		Status:        StatusBooked,
	}
	if req.Subtype != "" {
		a.Subtype = &req.Subtype
	}
	if req.Priority != "" {
		a.Priority = &req.Priority
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return s.appts.ListByPatient(ctx, patientID)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != StatusBooked {
		return fmt.Errorf("cannot cancel appointment in status %s", a.Status)
	}
	return s.appts.UpdateStatus(ctx, id, StatusCancelled)
}

// BookRecurring books every occurrence that follows baseDate in a one-year
// series as a follow-up appointment built from template. A failed occurrence
// does not stop the rest; the booked appointments are returned together with
// the joined errors of the failed ones.
func (s *Service) BookRecurring(ctx context.Context, patientID uuid.UUID, baseDate time.Time, baseTime string, intervalMonths int, template BookingRequest) ([]*Appointment, error) {
	series, err := Expand(baseDate, baseTime, intervalMonths)
	if err != nil {
		return nil, err
	}

	var booked []*Appointment
	var errs []error
	for occ := range series {
		req := template
		req.Date = occ.Date
		req.Time = occ.Time
		req.Type = TypeFollowUp
		a, err := s.Book(ctx, patientID, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("book %s: %w", occ.Date.Format(DateLayout), err))
			continue
		}
		booked = append(booked, a)
	}
	return booked, errors.Join(errs...)
}

// PreviewRecurrence lists the dates BookRecurring would book without writing anything.
func (s *Service) PreviewRecurrence(baseDate time.Time, baseTime string, intervalMonths int) ([]Occurrence, error) {
	series, err := Expand(baseDate, baseTime, intervalMonths)
	if err != nil {
		return nil, err
	}
	var out []Occurrence
	for occ := range series {
		out = append(out, occ)
	}
	return out, nil
}
