package mdt

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type meetingRepoPG struct{ pool *pgxpool.Pool }

func NewMeetingRepoPG(pool *pgxpool.Pool) MeetingRepository {
	return &meetingRepoPG{pool: pool}
}

func (r *meetingRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Meeting, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, meeting_date, status, outcome, created_at
		FROM mdt_meetings WHERE patient_id = $1
		ORDER BY meeting_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.ID, &m.PatientID, &m.MeetingDate, &m.Status, &m.Outcome, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}
