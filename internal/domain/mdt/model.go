package mdt

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Meeting is a multidisciplinary team review of one patient.
type Meeting struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	MeetingDate time.Time `db:"meeting_date" json:"meeting_date"`
	Status      string    `db:"status" json:"status"`
	Outcome     *string   `db:"outcome" json:"outcome,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Upcoming reports whether the meeting is still scheduled on or after the
// calendar date of now.
func (m *Meeting) Upcoming(now time.Time) bool {
	if m.Status != StatusScheduled {
		return false
	}
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	my, mm, md := m.MeetingDate.Date()
	return !time.Date(my, mm, md, 0, 0, 0, 0, time.UTC).Before(today)
}
