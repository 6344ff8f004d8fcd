package pathway

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/uropathway/internal/domain/scheduling"
)

// Appointments binds the scheduling service to AppointmentStore.
type Appointments struct {
	Svc *scheduling.Service
}

func (a Appointments) BookAppointment(ctx context.Context, patientID uuid.UUID, req scheduling.BookingRequest) (*scheduling.Appointment, error) {
	return a.Svc.Book(ctx, patientID, req)
}

func (a Appointments) ListAppointments(ctx context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error) {
	return a.Svc.ListByPatient(ctx, patientID)
}

// EscalationKind is the message type of review-queue escalations.
const EscalationKind = "pathway.enrichment_failed"

type publisher interface {
	Publish(ctx context.Context, kind string, payload any) error
}

// QueueReview sends escalations to a message queue publisher.
type QueueReview struct {
	pub publisher
}

func NewQueueReview(pub publisher) *QueueReview {
	return &QueueReview{pub: pub}
}

func (q *QueueReview) Escalate(ctx context.Context, e Escalation) error {
	return q.pub.Publish(ctx, EscalationKind, e)
}
