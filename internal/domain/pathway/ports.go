package pathway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/uropathway/internal/domain/mdt"
	"github.com/ehr/uropathway/internal/domain/notes"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
	"github.com/ehr/uropathway/internal/platform/auth"
)

// PatientStore owns the patient record and its pathway field.
type PatientStore interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	UpdatePathway(ctx context.Context, id uuid.UUID, u patient.PathwayUpdate) (*patient.PathwayUpdateResult, error)
	CreateDischargeSummary(ctx context.Context, id uuid.UUID, ds *patient.DischargeSummary) error
}

type AppointmentStore interface {
	BookAppointment(ctx context.Context, patientID uuid.UUID, req scheduling.BookingRequest) (*scheduling.Appointment, error)
	ListAppointments(ctx context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error)
}

type NotesStore interface {
	AddNote(ctx context.Context, patientID uuid.UUID, n notes.NewNote) (*notes.ClinicalNote, error)
	ListNotes(ctx context.Context, patientID uuid.UUID) ([]*notes.ClinicalNote, error)
}

type MeetingStore interface {
	ListMeetings(ctx context.Context, patientID uuid.UUID) ([]*mdt.Meeting, error)
}

// Identity resolves the clinician performing the transition.
type Identity interface {
	CurrentUser(ctx context.Context) (auth.User, error)
}

// Locker serializes transitions for one patient. TryLock returns ok=false
// without error when the lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ReviewQueue receives enrichment steps that failed every retry.
type ReviewQueue interface {
	Escalate(ctx context.Context, e Escalation) error
}

// Escalation is the manual-review record for a failed enrichment step.
type Escalation struct {
	PatientID uuid.UUID           `json:"patient_id"`
	Pathway   patient.CarePathway `json:"pathway"`
	Step      Step                `json:"step"`
	Detail    string              `json:"detail,omitempty"`
	Error     string              `json:"error"`
	Attempts  int                 `json:"attempts"`
	ChangedBy string              `json:"changed_by"`
}
