package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"factline/internal/domain"
)

const queueColumns = `id, record_id, priority, enqueued_at, sla_deadline, resolved`

func scanQueueItem(row pgx.Row) (domain.QueueItem, error) {
	var item domain.QueueItem
	err := row.Scan(&item.ID, &item.RecordID, &item.Priority, &item.EnqueuedAt, &item.SLADeadline, &item.Resolved)
	return item, err
}

func (db *DB) Insert(ctx context.Context, item domain.QueueItem) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO moderation_queue (id, record_id, priority, enqueued_at, sla_deadline, resolved)
        VALUES ($1, $2, $3, $4, $5, false)
    `, item.ID, item.RecordID, item.Priority, item.EnqueuedAt, item.SLADeadline)
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		// Partial unique index: one open item per record.
		return domain.E(domain.KindAlreadyQueued, "record %s already queued", item.RecordID)
	}
	return err
}

func (db *DB) GetItem(ctx context.Context, itemID string) (domain.QueueItem, error) {
	item, err := scanQueueItem(db.Pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM moderation_queue WHERE id = $1`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueItem{}, domain.E(domain.KindItemNotFound, "queue item %s", itemID)
	}
	return item, err
}

func (db *DB) OpenByRecord(ctx context.Context, recordID string) (domain.QueueItem, bool, error) {
	item, err := scanQueueItem(db.Pool.QueryRow(ctx, `
        SELECT `+queueColumns+` FROM moderation_queue WHERE record_id = $1 AND NOT resolved
    `, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueItem{}, false, nil
	}
	if err != nil {
		return domain.QueueItem{}, false, err
	}
	return item, true, nil
}

func (db *DB) ListOpen(ctx context.Context) ([]domain.QueueItem, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+queueColumns+` FROM moderation_queue WHERE NOT resolved`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (db *DB) MarkResolved(ctx context.Context, itemID string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE moderation_queue SET resolved = true WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.KindItemNotFound, "queue item %s", itemID)
	}
	return nil
}

func (db *DB) ExtendSLA(ctx context.Context, itemID string, deadline time.Time) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE moderation_queue SET sla_deadline = $2 WHERE id = $1`, itemID, deadline)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.KindItemNotFound, "queue item %s", itemID)
	}
	return nil
}
