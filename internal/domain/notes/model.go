package notes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NoteType string

const (
	TypeClinical              NoteType = "clinical"
	TypePathwayTransfer       NoteType = "pathway_transfer"
	TypeInvestigationRequest  NoteType = "investigation_request"
	TypeClinicalInvestigation NoteType = "clinical_investigation"
	TypeNoShow                NoteType = "no_show"
)

var validNoteTypes = map[NoteType]bool{
	TypeClinical:              true,
	TypePathwayTransfer:       true,
	TypeInvestigationRequest:  true,
	TypeClinicalInvestigation: true,
	TypeNoShow:                true,
}

// ContentKind names the variant held in a note's Content.
type ContentKind string

const (
	KindPlainText             ContentKind = "plain_text"
	KindPathwayTransfer       ContentKind = "pathway_transfer"
	KindInvestigationRequest  ContentKind = "investigation_request"
	KindReschedule            ContentKind = "reschedule"
	KindAppointmentTypeChange ContentKind = "appointment_type_change"
)

// Content is the structured body of a clinical note. It is one of
// PlainText, PathwayTransferPayload, InvestigationRequestPayload,
// ReschedulePayload or AppointmentTypeChangePayload.
type Content interface {
	Kind() ContentKind
}

type PlainText struct {
	Text string `json:"text"`
}

// PathwayTransferPayload records one pathway transition.
type PathwayTransferPayload struct {
	// Heading distinguishes templates, e.g. a medication prescription.
	Heading               string   `json:"heading"`
	From                  string   `json:"from,omitempty"`
	To                    string   `json:"to"`
	Priority              string   `json:"priority,omitempty"`
	Reason                string   `json:"reason,omitempty"`
	ClinicalRationale     string   `json:"clinical_rationale,omitempty"`
	AdditionalNotes       string   `json:"additional_notes,omitempty"`
	PSAVelocity           string   `json:"psa_velocity,omitempty"`
	Appointments          []string `json:"appointments,omitempty"`
	RecurringAppointments []string `json:"recurring_appointments,omitempty"`
	Medications           []string `json:"medications,omitempty"`
	DischargeSummary      string   `json:"discharge_summary,omitempty"`
	AutoGenerated         bool     `json:"auto_generated,omitempty"`
}

type InvestigationRequestPayload struct {
	Investigations []string `json:"investigations"`
	Priority       string   `json:"priority,omitempty"`
	Indication     string   `json:"indication,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	AutoGenerated  bool     `json:"auto_generated,omitempty"`
}

type ReschedulePayload struct {
	AppointmentType string `json:"appointment_type"`
	PreviousDate    string `json:"previous_date,omitempty"`
	NewDate         string `json:"new_date"`
	NewTime         string `json:"new_time,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type AppointmentTypeChangePayload struct {
	PreviousType string `json:"previous_type"`
	NewType      string `json:"new_type"`
	Reason       string `json:"reason,omitempty"`
}

func (PlainText) Kind() ContentKind                    { return KindPlainText }
func (PathwayTransferPayload) Kind() ContentKind       { return KindPathwayTransfer }
func (InvestigationRequestPayload) Kind() ContentKind  { return KindInvestigationRequest }
func (ReschedulePayload) Kind() ContentKind            { return KindReschedule }
func (AppointmentTypeChangePayload) Kind() ContentKind { return KindAppointmentTypeChange }

// ClinicalNote is an append-only entry in a patient's record.
type ClinicalNote struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	Type       NoteType  `json:"type"`
	Content    Content   `json:"-"`
	AuthorName string    `json:"author_name"`
	AuthorRole string    `json:"author_role"`
	CreatedAt  time.Time `json:"created_at"`
}

// MarshalJSON renders the note with both the stored text form and the
// structured payload.
func (n ClinicalNote) MarshalJSON() ([]byte, error) {
	type alias ClinicalNote
	return json.Marshal(struct {
		alias
		Content     string      `json:"content"`
		ContentKind ContentKind `json:"content_kind"`
		Payload     Content     `json:"payload"`
	}{
		alias:       alias(n),
		Content:     Encode(n.Content),
		ContentKind: kindOf(n.Content),
		Payload:     n.Content,
	})
}

func kindOf(c Content) ContentKind {
	if c == nil {
		return KindPlainText
	}
	return c.Kind()
}

// Author identifies who wrote a note.
type Author struct {
	Name string
	Role string
}

// NewNote is the input to AddNote.
type NewNote struct {
	Type    NoteType
	Content Content
	Author  Author
}

// TimelineEntry is one row of the rendered clinical timeline.
type TimelineEntry struct {
	Note        *ClinicalNote `json:"note"`
	IndentLevel int           `json:"indent_level"`
}
