package ports

import (
	"context"
	"time"

	"factline/internal/domain"
)

// RecordPatch carries the fields a state transition may set. Nil pointers
// leave the stored value untouched; AppendReasoning always appends.
type RecordPatch struct {
	Verdict         *domain.Verdict
	Confidence      *float64
	AppendReasoning []string
	Sources         []domain.Source
}

// RecordQuery filters and pages verification reads. Zero values mean "any".
type RecordQuery struct {
	Verdict domain.Verdict
	State   domain.State
	Sender  string
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

// Stats are aggregate counts for the dashboard read API.
type Stats struct {
	Total     int                    `json:"total"`
	ByVerdict map[domain.Verdict]int `json:"by_verdict"`
	ByState   map[domain.State]int   `json:"by_state"`
}

// RecordStore is the only component that mutates verdict, confidence and
// state. UpdateState enforces the transition table and the expectedState
// optimistic-concurrency check.
type RecordStore interface {
	Create(ctx context.Context, rec domain.VerificationRecord) error
	GetByID(ctx context.Context, id string) (domain.VerificationRecord, error)
	UpdateState(ctx context.Context, id string, expected, next domain.State, patch RecordPatch) (domain.VerificationRecord, error)
	Query(ctx context.Context, q RecordQuery) ([]domain.VerificationRecord, error)
	Stats(ctx context.Context) (Stats, error)
}

// QueueStore persists moderation queue items keyed by record id.
type QueueStore interface {
	Insert(ctx context.Context, item domain.QueueItem) error
	GetItem(ctx context.Context, itemID string) (domain.QueueItem, error)
	// OpenByRecord returns the unresolved item for a record, if any.
	OpenByRecord(ctx context.Context, recordID string) (domain.QueueItem, bool, error)
	ListOpen(ctx context.Context) ([]domain.QueueItem, error)
	MarkResolved(ctx context.Context, itemID string) error
	ExtendSLA(ctx context.Context, itemID string, deadline time.Time) error
}

// AuditStore appends immutable entries. No update or delete exists.
type AuditStore interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// CaseStore persists direct incident reports.
type CaseStore interface {
	CreateCase(ctx context.Context, c domain.Case) error
	ListCases(ctx context.Context, from, to time.Time, limit int) ([]domain.Case, error)
}
