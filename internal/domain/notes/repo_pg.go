package notes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type noteRepoPG struct{ pool *pgxpool.Pool }

func NewNoteRepoPG(pool *pgxpool.Pool) NoteRepository {
	return &noteRepoPG{pool: pool}
}

const noteCols = `id, patient_id, note_type, content, author_name, author_role, created_at`

func scanNote(row pgx.Row) (*ClinicalNote, error) {
	var n ClinicalNote
	var text string
	if err := row.Scan(&n.ID, &n.PatientID, &n.Type, &text, &n.AuthorName, &n.AuthorRole, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Content = Decode(text)
	return &n, nil
}

func (r *noteRepoPG) Create(ctx context.Context, n *ClinicalNote) error {
	n.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clinical_notes (id, patient_id, note_type, content, author_name, author_role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		n.ID, n.PatientID, n.Type, Encode(n.Content), n.AuthorName, n.AuthorRole).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert clinical note: %w", err)
	}
	return nil
}

func (r *noteRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalNote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+noteCols+` FROM clinical_notes
		WHERE patient_id = $1 ORDER BY created_at DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ClinicalNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}
