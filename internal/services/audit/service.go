// Package audit is the append-only record of every state-changing action.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"factline/internal/domain"
	"factline/internal/ports"
)

type Service struct {
	store ports.AuditStore
	log   *slog.Logger
	now   func() time.Time
}

func New(store ports.AuditStore, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Record appends an entry, retrying with exponential backoff on storage
// failure since losing audit history is unacceptable. If the append still
// fails after retries the gap is logged with the full entry so it can be
// replayed during reconciliation.
func (s *Service) Record(ctx context.Context, entry domain.AuditEntry) {
	if entry.Actor == "" {
		entry.Actor = domain.ActorSystem
	}
	entry.CreatedAt = s.now().UTC()

	backoff := retry.WithMaxRetries(5, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.store.Append(ctx, entry); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Known reconciliation gap: state write succeeded but its audit entry
		// did not. Log everything needed to replay the entry.
		s.log.Error("audit append failed after retries, entry lost pending reconciliation",
			"action", entry.Action,
			"actor", entry.Actor,
			"record_id", entry.RecordID,
			"details", entry.Details,
			"err", err,
		)
	}
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.store.ListRecent(ctx, limit)
}
