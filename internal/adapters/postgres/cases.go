package postgres

import (
	"context"
	"encoding/json"
	"time"

	"factline/internal/domain"
)

func (db *DB) CreateCase(ctx context.Context, c domain.Case) error {
	evidence, err := json.Marshal(c.Evidence)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO cases (id, sender_phone, incident_type, description, amount_lost, evidence, verification_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, c.ID, c.SenderPhone, c.IncidentType, c.Description, c.AmountLost, evidence, c.VerificationID, c.CreatedAt)
	return err
}

func (db *DB) ListCases(ctx context.Context, from, to time.Time, limit int) ([]domain.Case, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}
	rows, err := db.Pool.Query(ctx, `
        SELECT id, sender_phone, incident_type, description, amount_lost, evidence, verification_id, created_at
        FROM cases
        WHERE created_at >= $1 AND created_at <= $2
        ORDER BY created_at DESC LIMIT $3
    `, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Case
	for rows.Next() {
		var c domain.Case
		var evidence []byte
		if err := rows.Scan(&c.ID, &c.SenderPhone, &c.IncidentType, &c.Description, &c.AmountLost, &evidence, &c.VerificationID, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(evidence, &c.Evidence); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
