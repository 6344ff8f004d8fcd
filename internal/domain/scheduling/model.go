package scheduling

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used on the wire and in booking requests.
const DateLayout = "2006-01-02"

type AppointmentType string

const (
	TypeUrologist AppointmentType = "urologist"
	TypeSurgery   AppointmentType = "surgery"
	TypeFollowUp  AppointmentType = "follow-up"
)

var validAppointmentTypes = map[AppointmentType]bool{
	TypeUrologist: true, TypeSurgery: true, TypeFollowUp: true,
}

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

var validPriorities = map[string]bool{"normal": true, "high": true, "urgent": true}

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Appointment maps to the appointments table.
type Appointment struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	Date          time.Time       `db:"appointment_date" json:"date"`
	Time          string          `db:"appointment_time" json:"time"`
	Type          AppointmentType `db:"type" json:"type"`
	Subtype       *string         `db:"subtype" json:"subtype,omitempty"`
	ClinicianID   string          `db:"clinician_id" json:"clinician_id"`
	ClinicianName string          `db:"clinician_name" json:"clinician_name"`
	Priority      *string         `db:"priority" json:"priority,omitempty"`
	Notes         string          `db:"notes" json:"notes"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// DateString renders the appointment date as YYYY-MM-DD.
func (a *Appointment) DateString() string {
	return a.Date.Format(DateLayout)
}

// Summary is the one-line form used inside audit notes.
func (a *Appointment) Summary() string {
	s := fmt.Sprintf("%s appointment on %s at %s", a.Type, a.DateString(), a.Time)
	if a.ClinicianName != "" {
		s += " with " + a.ClinicianName
	}
	return s
}

// BookingRequest carries everything needed to place one appointment.
type BookingRequest struct {
	Date          time.Time
	Time          string
	ClinicianID   string
	ClinicianName string
	Type          AppointmentType
	Subtype       string
	Notes         string
	Priority      string
}

// ParseDate parses a YYYY-MM-DD calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ValidTimeOfDay reports whether s is a 24h HH:MM time.
func ValidTimeOfDay(s string) bool {
	return timeOfDayPattern.MatchString(s)
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
