package pathway

import (
	"github.com/google/uuid"

	"github.com/ehr/uropathway/internal/domain/labs"
	"github.com/ehr/uropathway/internal/domain/mdt"
	"github.com/ehr/uropathway/internal/domain/notes"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
)

const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Medication struct {
	Name      string `json:"name" validate:"notblank"`
	Dosage    string `json:"dosage" validate:"notblank"`
	Frequency string `json:"frequency" validate:"notblank"`
	Duration  string `json:"duration,omitempty"`
}

type DischargeSummaryInput struct {
	Summary              string `json:"summary" validate:"required"`
	DischargeDate        string `json:"discharge_date" validate:"required,datetime=2006-01-02"`
	FollowUpInstructions string `json:"follow_up_instructions"`
	GPLetterRequired     bool   `json:"gp_letter_required"`
}

// Request is one requested change of a patient's care pathway.
type Request struct {
	TargetPathway     patient.CarePathway    `json:"target_pathway" validate:"care_pathway"`
	Reason            string                 `json:"reason"`
	Priority          string                 `json:"priority" validate:"omitempty,oneof=normal high urgent"`
	ClinicalRationale string                 `json:"clinical_rationale"`
	AdditionalNotes   string                 `json:"additional_notes"`
	Medications       []Medication           `json:"medications"`
	SurgeryDate       string                 `json:"surgery_date" validate:"omitempty,datetime=2006-01-02"`
	SurgeryTime       string                 `json:"surgery_time" validate:"omitempty,time_of_day"`
	FollowUpDate      string                 `json:"follow_up_date" validate:"omitempty,datetime=2006-01-02"`
	FollowUpTime      string                 `json:"follow_up_time" validate:"omitempty,time_of_day"`
	RecurrenceMonths  int                    `json:"recurrence_months" validate:"omitempty,oneof=1 3 6 12"`
	DischargeSummary  *DischargeSummaryInput `json:"discharge_summary,omitempty"`

	// PSAVelocity is attached by the handler from stored results.
	PSAVelocity *labs.Velocity `json:"-"`
}

func (r *Request) priority() string {
	if r.Priority == "" {
		return PriorityNormal
	}
	return r.Priority
}

// EnrichmentFailure is a best-effort step that did not succeed.
type EnrichmentFailure struct {
	Step      Step   `json:"step"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error"`
	Attempts  int    `json:"attempts"`
	Escalated bool   `json:"escalated"`
}

// Views is the refreshed state of the patient after a transition.
type Views struct {
	Patient      *patient.Patient          `json:"patient,omitempty"`
	Appointments []*scheduling.Appointment `json:"appointments,omitempty"`
	Meetings     []*mdt.Meeting            `json:"mdt_meetings,omitempty"`
	Timeline     []notes.TimelineEntry     `json:"timeline,omitempty"`
	Stage        Stage                     `json:"pipeline_stage,omitempty"`
}

// Result reports the outcome of Transition.
type Result struct {
	Success                  bool                      `json:"success"`
	PatientID                uuid.UUID                 `json:"patient_id"`
	Pathway                  patient.CarePathway       `json:"pathway"`
	Stage                    SagaState                 `json:"stage"`
	Appointment              *scheduling.Appointment   `json:"appointment,omitempty"`
	AutoBookedAppointment    *scheduling.Appointment   `json:"auto_booked_appointment,omitempty"`
	RecurringAppointments    []*scheduling.Appointment `json:"recurring_appointments,omitempty"`
	AuditNote                *notes.ClinicalNote       `json:"audit_note,omitempty"`
	RequiresDischargeSummary bool                      `json:"requires_discharge_summary"`
	EnrichmentFailures       []EnrichmentFailure       `json:"enrichment_failures"`
	Warnings                 []string                  `json:"warnings"`
	Error                    string                    `json:"error,omitempty"`
	Views                    *Views                    `json:"views,omitempty"`
}

// AppointmentDetails summarizes every appointment the transition booked.
func (r *Result) AppointmentDetails() []string {
	var out []string
	if r.Appointment != nil {
		out = append(out, r.Appointment.Summary())
	}
	if r.AutoBookedAppointment != nil {
		out = append(out, r.AutoBookedAppointment.Summary())
	}
	for _, a := range r.RecurringAppointments {
		out = append(out, a.Summary())
	}
	return out
}
