package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/uropathway/internal/domain/scheduling"
	"github.com/ehr/uropathway/internal/platform/db"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, mrn, first_name, last_name, date_of_birth, gender, phone,
	care_pathway, triage_symptoms, referring_clinician, created_at, updated_at`

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id).Scan(
		&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.Phone,
		&p.CarePathway, &p.TriageSymptoms, &p.ReferringClinician, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) UpdatePathway(ctx context.Context, change *PathwayChange, followUp *scheduling.Appointment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var from CarePathway
		err := tx.QueryRow(ctx, `SELECT care_pathway FROM patients WHERE id = $1 FOR UPDATE`, change.PatientID).Scan(&from)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock patient: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE patients SET care_pathway = $2, updated_at = NOW() WHERE id = $1`,
			change.PatientID, change.ToPathway); err != nil {
			return fmt.Errorf("update care pathway: %w", err)
		}

		change.ID = uuid.New()
		change.FromPathway = from
		err = tx.QueryRow(ctx, `
			INSERT INTO pathway_changes (id, patient_id, from_pathway, to_pathway, reason, notes, changed_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING changed_at`,
			change.ID, change.PatientID, change.FromPathway, change.ToPathway,
			change.Reason, change.Notes, change.ChangedBy).Scan(&change.ChangedAt)
		if err != nil {
			return fmt.Errorf("insert pathway change: %w", err)
		}

		if followUp != nil {
			return scheduling.InsertAppointment(ctx, tx, followUp)
		}
		return nil
	})
}

func (r *patientRepoPG) ListPathwayChanges(ctx context.Context, patientID uuid.UUID) ([]*PathwayChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, from_pathway, to_pathway, reason, notes, changed_by, changed_at
		FROM pathway_changes WHERE patient_id = $1 ORDER BY changed_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PathwayChange
	for rows.Next() {
		var c PathwayChange
		if err := rows.Scan(&c.ID, &c.PatientID, &c.FromPathway, &c.ToPathway,
			&c.Reason, &c.Notes, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) CreateDischargeSummary(ctx context.Context, ds *DischargeSummary) error {
	ds.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO discharge_summaries (id, patient_id, summary, discharge_date,
			follow_up_instructions, gp_letter_required, document_key, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		ds.ID, ds.PatientID, ds.Summary, ds.DischargeDate, ds.FollowUpInstructions,
		ds.GPLetterRequired, ds.DocumentKey, ds.CreatedBy).Scan(&ds.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert discharge summary: %w", err)
	}
	return nil
}
