package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"factline/internal/domain"
	"factline/internal/ports"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

const recordColumns = `id, channel, sender, body, media_ref, verdict, confidence, reasoning, sources, state, created_at, last_transitioned_at`

func scanRecord(row pgx.Row) (domain.VerificationRecord, error) {
	var rec domain.VerificationRecord
	var reasoning, sources []byte
	err := row.Scan(&rec.ID, &rec.Channel, &rec.Sender, &rec.Text, &rec.MediaRef,
		&rec.Verdict, &rec.Confidence, &reasoning, &sources, &rec.State,
		&rec.CreatedAt, &rec.LastTransitionedAt)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(reasoning, &rec.Reasoning); err != nil {
		return rec, fmt.Errorf("reasoning for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(sources, &rec.Sources); err != nil {
		return rec, fmt.Errorf("sources for %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (db *DB) Create(ctx context.Context, rec domain.VerificationRecord) error {
	reasoning, err := json.Marshal(rec.Reasoning)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO verifications (id, channel, sender, body, media_ref, verdict, confidence, reasoning, sources, state, created_at, last_transitioned_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, rec.ID, rec.Channel, rec.Sender, rec.Text, rec.MediaRef, rec.Verdict, rec.Confidence,
		reasoning, sources, rec.State, rec.CreatedAt, rec.LastTransitionedAt)
	return err
}

func (db *DB) GetByID(ctx context.Context, id string) (domain.VerificationRecord, error) {
	rec, err := scanRecord(db.Pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM verifications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VerificationRecord{}, domain.E(domain.KindNotFound, "record %s", id)
	}
	return rec, err
}

// UpdateState applies the transition table under a row lock. The expected
// state check is the optimistic-concurrency guard: two moderators racing on
// the same record cannot both win.
func (db *DB) UpdateState(ctx context.Context, id string, expected, next domain.State, patch ports.RecordPatch) (domain.VerificationRecord, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var rec domain.VerificationRecord
	rec, err = scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM verifications WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		err = domain.E(domain.KindNotFound, "record %s", id)
		return domain.VerificationRecord{}, err
	}
	if err != nil {
		return domain.VerificationRecord{}, err
	}

	if rec.State.Terminal() {
		err = domain.E(domain.KindTerminalState, "record %s is %s", id, rec.State)
		return domain.VerificationRecord{}, err
	}
	if rec.State != expected {
		err = domain.E(domain.KindInvalidTransition, "record %s is %s, expected %s", id, rec.State, expected)
		return domain.VerificationRecord{}, err
	}
	if !expected.CanTransition(next) {
		err = domain.E(domain.KindInvalidTransition, "%s -> %s is not allowed", expected, next)
		return domain.VerificationRecord{}, err
	}

	if patch.Verdict != nil {
		rec.Verdict = *patch.Verdict
	}
	if patch.Confidence != nil {
		rec.Confidence = *patch.Confidence
	}
	rec.Reasoning = append(rec.Reasoning, patch.AppendReasoning...)
	if patch.Sources != nil {
		rec.Sources = patch.Sources
	}
	if (next == domain.StatePublished || next == domain.StateAutoPublished) &&
		(!rec.Verdict.Valid() || len(rec.Reasoning) == 0) {
		err = domain.E(domain.KindInvalidTransition, "cannot publish %s without verdict and reasoning", id)
		return domain.VerificationRecord{}, err
	}
	rec.State = next
	rec.LastTransitionedAt = time.Now().UTC()

	var reasoning, sources []byte
	reasoning, err = json.Marshal(rec.Reasoning)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	sources, err = json.Marshal(rec.Sources)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	_, err = tx.Exec(ctx, `
        UPDATE verifications
        SET verdict=$2, confidence=$3, reasoning=$4, sources=$5, state=$6, last_transitioned_at=$7
        WHERE id=$1
    `, id, rec.Verdict, rec.Confidence, reasoning, sources, rec.State, rec.LastTransitionedAt)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	return rec, nil
}

func (db *DB) Query(ctx context.Context, q ports.RecordQuery) ([]domain.VerificationRecord, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.Verdict != "" {
		add("verdict = $%d", q.Verdict)
	}
	if q.State != "" {
		add("state = $%d", q.State)
	}
	if q.Sender != "" {
		add("sender = $%d", q.Sender)
	}
	if !q.From.IsZero() {
		add("created_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("created_at <= $%d", q.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	args = append(args, limit, q.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM verifications%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)-1, len(args))

	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.VerificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (db *DB) Stats(ctx context.Context) (ports.Stats, error) {
	stats := ports.Stats{
		ByVerdict: make(map[domain.Verdict]int),
		ByState:   make(map[domain.State]int),
	}
	rows, err := db.Pool.Query(ctx, `SELECT verdict, state, count(*) FROM verifications GROUP BY verdict, state`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var verdict domain.Verdict
		var state domain.State
		var n int
		if err := rows.Scan(&verdict, &state, &n); err != nil {
			return stats, err
		}
		stats.Total += n
		stats.ByVerdict[verdict] += n
		stats.ByState[state] += n
	}
	return stats, rows.Err()
}
