package postgres

import (
	"context"
	"encoding/json"

	"factline/internal/domain"
)

func (db *DB) Append(ctx context.Context, entry domain.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]string{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO audit_log (action, actor, record_id, details, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, entry.Action, entry.Actor, entry.RecordID, payload, entry.CreatedAt)
	return err
}

func (db *DB) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.Pool.Query(ctx, `
        SELECT id, action, actor, record_id, details, created_at
        FROM audit_log ORDER BY id DESC LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Actor, &entry.RecordID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
