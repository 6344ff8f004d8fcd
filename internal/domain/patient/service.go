package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/uropathway/internal/domain/scheduling"
	"github.com/ehr/uropathway/internal/platform/blobstore"
)

// DischargeSummaryCategory is the blob store category for archived summaries.
const DischargeSummaryCategory = "discharge-summary"

type Service struct {
	patients PatientRepository
	blobs    blobstore.BlobStore
	now      func() time.Time
}

// NewService builds the patient service. blobs may be nil, in which case
// discharge summaries are stored without an archived document.
func NewService(patients PatientRepository, blobs blobstore.BlobStore) *Service {
	return &Service{patients: patients, blobs: blobs, now: time.Now}
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPathwayChanges(ctx context.Context, id uuid.UUID) ([]*PathwayChange, error) {
	return s.patients.ListPathwayChanges(ctx, id)
}

// UpdatePathway moves the patient onto u.Pathway. Unless u.SkipAutoBooking is
// set, a follow-up appointment is booked in the same transaction, on
// u.AppointmentStartDate when given and otherwise u.AppointmentInterval
// months from today.
func (s *Service) UpdatePathway(ctx context.Context, id uuid.UUID, u PathwayUpdate) (*PathwayUpdateResult, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if !u.Pathway.Valid() {
		return nil, fmt.Errorf("invalid care pathway: %q", u.Pathway)
	}
	if u.ChangedBy == "" {
		return nil, fmt.Errorf("changed_by is required")
	}
	if u.AppointmentTime != "" && !scheduling.ValidTimeOfDay(u.AppointmentTime) {
		return nil, fmt.Errorf("appointment time must be HH:MM, got %q", u.AppointmentTime)
	}
	if u.AppointmentInterval < 0 {
		return nil, fmt.Errorf("appointment interval must not be negative")
	}

	change := &PathwayChange{
		PatientID: id,
		ToPathway: u.Pathway,
		Reason:    u.Reason,
		Notes:     u.Notes,
		ChangedBy: u.ChangedBy,
	}
	var followUp *scheduling.Appointment
	if !u.SkipAutoBooking {
		followUp = s.followUpFor(id, u)
	}

	if err := s.patients.UpdatePathway(ctx, change, followUp); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PathwayUpdateResult{Patient: p, Change: change, AutoBookedAppointment: followUp}, nil
}

func (s *Service) followUpFor(id uuid.UUID, u PathwayUpdate) *scheduling.Appointment {
	var date time.Time
	if u.AppointmentStartDate != nil {
		date = scheduling.DateOnly(*u.AppointmentStartDate)
	} else {
		interval := u.AppointmentInterval
		if interval == 0 {
			interval = DefaultFollowUpInterval
		}
		date = scheduling.AddMonths(scheduling.DateOnly(s.now()), interval)
	}
	t := u.AppointmentTime
	if t == "" {
		t = DefaultFollowUpTime
	}
	name := u.ChangedByName
	if name == "" {
		name = u.ChangedBy
	}
	return &scheduling.Appointment{
		PatientID:     id,
		Date:          date,
		Time:          t,
		Type:          scheduling.TypeFollowUp,
		ClinicianID:   u.ChangedBy,
		ClinicianName: name,
		Notes:         fmt.Sprintf("Auto-booked follow-up for %s", u.Pathway),
		Status:        scheduling.StatusBooked,
	}
}

// CreateDischargeSummary archives a text rendering of ds in the blob store
// and records the summary.
func (s *Service) CreateDischargeSummary(ctx context.Context, id uuid.UUID, ds *DischargeSummary) error {
	if strings.TrimSpace(ds.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	if ds.DischargeDate.IsZero() {
		return fmt.Errorf("discharge_date is required")
	}
	if ds.CreatedBy == "" {
		return fmt.Errorf("created_by is required")
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ds.PatientID = id

	if s.blobs != nil {
		meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
			FileName:    "discharge-summary-" + ds.DischargeDate.Format(scheduling.DateLayout) + ".txt",
			ContentType: "text/plain; charset=utf-8",
			PatientID:   id.String(),
			Category:    DischargeSummaryCategory,
			CreatedBy:   ds.CreatedBy,
		}, strings.NewReader(RenderDischargeSummary(p, ds)))
		if err != nil {
			return fmt.Errorf("archive discharge summary: %w", err)
		}
		ds.DocumentKey = meta.Key
	}
	return s.patients.CreateDischargeSummary(ctx, ds)
}

// RenderDischargeSummary is the plain-text document archived for a summary.
func RenderDischargeSummary(p *Patient, ds *DischargeSummary) string {
	var b strings.Builder
	b.WriteString("DISCHARGE SUMMARY\n\n")
	fmt.Fprintf(&b, "Patient: %s\n", p.FullName())
	fmt.Fprintf(&b, "MRN: %s\n", p.MRN)
	fmt.Fprintf(&b, "Discharge Date: %s\n", ds.DischargeDate.Format(scheduling.DateLayout))
	fmt.Fprintf(&b, "\nSummary:\n%s\n", ds.Summary)
	if ds.FollowUpInstructions != "" {
		fmt.Fprintf(&b, "\nFollow-up Instructions:\n%s\n", ds.FollowUpInstructions)
	}
	gp := "No"
	if ds.GPLetterRequired {
		gp = "Yes"
	}
	fmt.Fprintf(&b, "\nGP Letter Required: %s\n", gp)
	fmt.Fprintf(&b, "Completed By: %s\n", ds.CreatedBy)
	return b.String()
}
