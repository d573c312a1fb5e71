package ports

import (
	"context"

	"factline/internal/domain"
)

// Classification is the classifier adapter's output. Always fully populated:
// the adapter never returns an empty verdict.
type Classification struct {
	Verdict    domain.Verdict
	Confidence float64
	Reasoning  []string
	Sources    []domain.Source
}

// Classifier wraps the external verdict-producing capability. Deterministic
// for a given rule set so verdicts stay reproducible and auditable.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// Gateway drives the submission pipeline.
type Gateway interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.VerificationRecord, error)
}

// Auditor records state-changing actions. Record retries on storage failure;
// losing audit history is unacceptable.
type Auditor interface {
	Record(ctx context.Context, entry domain.AuditEntry)
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
