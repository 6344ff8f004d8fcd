package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/uropathway/internal/domain/scheduling"
)

type CarePathway string

const (
	PathwayOPDQueue           CarePathway = "OPD Queue"
	PathwayActiveMonitoring   CarePathway = "Active Monitoring"
	PathwayActiveSurveillance CarePathway = "Active Surveillance"
	PathwayMedication         CarePathway = "Medication"
	PathwaySurgery            CarePathway = "Surgery Pathway"
	PathwayRadiotherapy       CarePathway = "Radiotherapy"
	PathwayPostOpTransfer     CarePathway = "Post-op Transfer"
	PathwayPostOpFollowup     CarePathway = "Post-op Followup"
	PathwayDischarge          CarePathway = "Discharge"
)

var validPathways = map[CarePathway]bool{
	PathwayOPDQueue:           true,
	PathwayActiveMonitoring:   true,
	PathwayActiveSurveillance: true,
	PathwayMedication:         true,
	PathwaySurgery:            true,
	PathwayRadiotherapy:       true,
	PathwayPostOpTransfer:     true,
	PathwayPostOpFollowup:     true,
	PathwayDischarge:          true,
}

// Valid reports whether p is one of the fixed care pathways.
func (p CarePathway) Valid() bool { return validPathways[p] }

const (
	// DefaultFollowUpInterval is the auto-booking offset in months when the
	// caller gives neither a start date nor an interval.
	DefaultFollowUpInterval = 3
	DefaultFollowUpTime     = "09:00"
)

// Patient maps to the patients table.
type Patient struct {
	ID                 uuid.UUID   `db:"id" json:"id"`
	MRN                string      `db:"mrn" json:"mrn"`
	FirstName          string      `db:"first_name" json:"first_name"`
	LastName           string      `db:"last_name" json:"last_name"`
	DateOfBirth        *time.Time  `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender             *string     `db:"gender" json:"gender,omitempty"`
	Phone              *string     `db:"phone" json:"phone,omitempty"`
	CarePathway        CarePathway `db:"care_pathway" json:"care_pathway"`
	TriageSymptoms     []string    `db:"triage_symptoms" json:"triage_symptoms"`
	ReferringClinician *string     `db:"referring_clinician" json:"referring_clinician,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// PathwayUpdate is a request to move a patient onto a new care pathway.
type PathwayUpdate struct {
	Pathway         CarePathway
	Reason          string
	Notes           string
	SkipAutoBooking bool
	// AppointmentStartDate overrides the auto-booked follow-up date.
	AppointmentStartDate *time.Time
	AppointmentTime      string
	// AppointmentInterval is in months; zero means DefaultFollowUpInterval.
	AppointmentInterval int
	ChangedBy           string
	ChangedByName       string
}

type PathwayUpdateResult struct {
	Patient               *Patient                `json:"patient"`
	Change                *PathwayChange          `json:"change"`
	AutoBookedAppointment *scheduling.Appointment `json:"auto_booked_appointment,omitempty"`
}

// PathwayChange is one row of the append-only pathway history.
type PathwayChange struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	PatientID   uuid.UUID   `db:"patient_id" json:"patient_id"`
	FromPathway CarePathway `db:"from_pathway" json:"from_pathway"`
	ToPathway   CarePathway `db:"to_pathway" json:"to_pathway"`
	Reason      string      `db:"reason" json:"reason"`
	Notes       string      `db:"notes" json:"notes"`
	ChangedBy   string      `db:"changed_by" json:"changed_by"`
	ChangedAt   time.Time   `db:"changed_at" json:"changed_at"`
}

// DischargeSummary maps to the discharge_summaries table.
type DischargeSummary struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	PatientID            uuid.UUID `db:"patient_id" json:"patient_id"`
	Summary              string    `db:"summary" json:"summary"`
	DischargeDate        time.Time `db:"discharge_date" json:"discharge_date"`
	FollowUpInstructions string    `db:"follow_up_instructions" json:"follow_up_instructions"`
	GPLetterRequired     bool      `db:"gp_letter_required" json:"gp_letter_required"`
	DocumentKey          string    `db:"document_key" json:"document_key,omitempty"`
	CreatedBy            string    `db:"created_by" json:"created_by"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}
