// Package memstore is an in-memory implementation of the storage ports. It
// backs tests and DATABASE_URL-less local runs with the same transition
// semantics as the postgres adapter.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"factline/internal/domain"
	"factline/internal/ports"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Store struct {
	mu       sync.Mutex
	records  map[string]domain.VerificationRecord
	queue    map[string]domain.QueueItem
	audit    []domain.AuditEntry
	cases    []domain.Case
	auditSeq int64
}

func New() *Store {
	return &Store{
		records: make(map[string]domain.VerificationRecord),
		queue:   make(map[string]domain.QueueItem),
	}
}

func cloneRecord(rec domain.VerificationRecord) domain.VerificationRecord {
	rec.Reasoning = slices.Clone(rec.Reasoning)
	rec.Sources = slices.Clone(rec.Sources)
	return rec
}

// RecordStore

func (s *Store) Create(ctx context.Context, rec domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return domain.E(domain.KindInvalidSubmission, "record %s already exists", rec.ID)
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.VerificationRecord{}, domain.E(domain.KindNotFound, "record %s", id)
	}
	return cloneRecord(rec), nil
}

func (s *Store) UpdateState(ctx context.Context, id string, expected, next domain.State, patch ports.RecordPatch) (domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.VerificationRecord{}, domain.E(domain.KindNotFound, "record %s", id)
	}
	if rec.State.Terminal() {
		return domain.VerificationRecord{}, domain.E(domain.KindTerminalState, "record %s is %s", id, rec.State)
	}
	if rec.State != expected {
		return domain.VerificationRecord{}, domain.E(domain.KindInvalidTransition, "record %s is %s, expected %s", id, rec.State, expected)
	}
	if !expected.CanTransition(next) {
		return domain.VerificationRecord{}, domain.E(domain.KindInvalidTransition, "%s -> %s is not allowed", expected, next)
	}
	updated := cloneRecord(rec)
	if patch.Verdict != nil {
		updated.Verdict = *patch.Verdict
	}
	if patch.Confidence != nil {
		updated.Confidence = *patch.Confidence
	}
	updated.Reasoning = append(updated.Reasoning, patch.AppendReasoning...)
	if patch.Sources != nil {
		updated.Sources = slices.Clone(patch.Sources)
	}
	if (next == domain.StatePublished || next == domain.StateAutoPublished) &&
		(!updated.Verdict.Valid() || len(updated.Reasoning) == 0) {
		return domain.VerificationRecord{}, domain.E(domain.KindInvalidTransition, "cannot publish %s without verdict and reasoning", id)
	}
	updated.State = next
	updated.LastTransitionedAt = time.Now().UTC()
	s.records[id] = updated
	return cloneRecord(updated), nil
}

func (s *Store) Query(ctx context.Context, q ports.RecordQuery) ([]domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VerificationRecord
	for _, rec := range s.records {
		if q.Verdict != "" && rec.Verdict != q.Verdict {
			continue
		}
		if q.State != "" && rec.State != q.State {
			continue
		}
		if q.Sender != "" && rec.Sender != q.Sender {
			continue
		}
		if !q.From.IsZero() && rec.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && rec.CreatedAt.After(q.To) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (ports.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := ports.Stats{
		ByVerdict: make(map[domain.Verdict]int),
		ByState:   make(map[domain.State]int),
	}
	for _, rec := range s.records {
		stats.Total++
		stats.ByVerdict[rec.Verdict]++
		stats.ByState[rec.State]++
	}
	return stats, nil
}

// QueueStore

func (s *Store) Insert(ctx context.Context, item domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.queue {
		if existing.RecordID == item.RecordID && !existing.Resolved {
			return domain.E(domain.KindAlreadyQueued, "record %s already queued as %s", item.RecordID, existing.ID)
		}
	}
	s.queue[item.ID] = item
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue[itemID]
	if !ok {
		return domain.QueueItem{}, domain.E(domain.KindItemNotFound, "queue item %s", itemID)
	}
	return item, nil
}

func (s *Store) OpenByRecord(ctx context.Context, recordID string) (domain.QueueItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.queue {
		if item.RecordID == recordID && !item.Resolved {
			return item, true, nil
		}
	}
	return domain.QueueItem{}, false, nil
}

func (s *Store) ListOpen(ctx context.Context) ([]domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.QueueItem
	for _, item := range s.queue {
		if !item.Resolved {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *Store) MarkResolved(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue[itemID]
	if !ok {
		return domain.E(domain.KindItemNotFound, "queue item %s", itemID)
	}
	item.Resolved = true
	s.queue[itemID] = item
	return nil
}

func (s *Store) ExtendSLA(ctx context.Context, itemID string, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue[itemID]
	if !ok {
		return domain.E(domain.KindItemNotFound, "queue item %s", itemID)
	}
	item.SLADeadline = deadline
	s.queue[itemID] = item
	return nil
}

// AuditStore

func (s *Store) Append(ctx context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditSeq++
	entry.ID = s.auditSeq
	if entry.Details != nil {
		entry.Details = maps.Clone(entry.Details)
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = defaultLimit
	}
	start := len(s.audit) - limit
	if start < 0 {
		start = 0
	}
	out := make([]domain.AuditEntry, 0, len(s.audit)-start)
	for i := len(s.audit) - 1; i >= start; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

// CaseStore

func (s *Store) CreateCase(ctx context.Context, c domain.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Evidence = slices.Clone(c.Evidence)
	s.cases = append(s.cases, c)
	return nil
}

func (s *Store) ListCases(ctx context.Context, from, to time.Time, limit int) ([]domain.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = defaultLimit
	}
	var out []domain.Case
	for _, c := range s.cases {
		if !from.IsZero() && c.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && c.CreatedAt.After(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
