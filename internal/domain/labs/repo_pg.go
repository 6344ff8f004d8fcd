package labs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type psaRepoPG struct{ pool *pgxpool.Pool }

func NewPSARepoPG(pool *pgxpool.Pool) PSARepository {
	return &psaRepoPG{pool: pool}
}

func (r *psaRepoPG) Create(ctx context.Context, res *PSAResult) error {
	res.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO psa_results (id, patient_id, value, value_text, test_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		res.ID, res.PatientID, res.Value, res.ValueText, res.TestDate).Scan(&res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert psa result: %w", err)
	}
	return nil
}

func (r *psaRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PSAResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, value, value_text, test_date, created_at
		FROM psa_results WHERE patient_id = $1
		ORDER BY test_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PSAResult
	for rows.Next() {
		var res PSAResult
		if err := rows.Scan(&res.ID, &res.PatientID, &res.Value, &res.ValueText, &res.TestDate, &res.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &res)
	}
	return items, rows.Err()
}
