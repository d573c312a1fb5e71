package ingest

import (
	"context"
	"strings"

	"factline/internal/domain"
)

// Report is a structured direct incident report.
type Report struct {
	SenderPhone  string
	IncidentType string
	Description  string
	AmountLost   float64
	Evidence     []string
}

// SubmitReport opens a case for the incident and runs its description
// through the verification pipeline. Cases and verifications are related but
// separately numbered.
func (s *Service) SubmitReport(ctx context.Context, r Report) (domain.Case, domain.VerificationRecord, error) {
	if strings.TrimSpace(r.SenderPhone) == "" {
		return domain.Case{}, domain.VerificationRecord{}, domain.E(domain.KindInvalidSubmission, "sender phone missing")
	}
	if strings.TrimSpace(r.Description) == "" {
		return domain.Case{}, domain.VerificationRecord{}, domain.E(domain.KindInvalidSubmission, "report description is empty")
	}

	rec, err := s.Submit(ctx, domain.Submission{
		Channel:    domain.ChannelDirectReport,
		Sender:     r.SenderPhone,
		Text:       r.Description,
		ReceivedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Case{}, domain.VerificationRecord{}, err
	}

	c := domain.Case{
		ID:             s.ids.Case(),
		SenderPhone:    r.SenderPhone,
		IncidentType:   r.IncidentType,
		Description:    r.Description,
		AmountLost:     r.AmountLost,
		Evidence:       r.Evidence,
		VerificationID: rec.ID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.cases.CreateCase(ctx, c); err != nil {
		return domain.Case{}, domain.VerificationRecord{}, err
	}
	s.auditor.Record(ctx, domain.AuditEntry{
		Action:   "case_opened",
		RecordID: rec.ID,
		Details:  map[string]string{"case_id": c.ID, "incident_type": r.IncidentType},
	})
	return c, rec, nil
}
