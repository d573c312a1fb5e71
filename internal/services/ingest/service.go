// Package ingest drives the verification pipeline: normalize the inbound
// payload, persist a pending record, classify, then triage into publication
// or the moderation queue.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"factline/internal/domain"
	"factline/internal/ids"
	"factline/internal/metrics"
	"factline/internal/ports"
	"factline/internal/services/moderation"
	"factline/internal/services/triage"
)

type Service struct {
	records    ports.RecordStore
	cases      ports.CaseStore
	classifier ports.Classifier
	policy     triage.Policy
	queue      *moderation.Service
	auditor    ports.Auditor
	dispatcher ports.Dispatcher
	ids        *ids.Generator
	log        *slog.Logger
	now        func() time.Time
}

func New(
	records ports.RecordStore,
	cases ports.CaseStore,
	classifier ports.Classifier,
	policy triage.Policy,
	queue *moderation.Service,
	auditor ports.Auditor,
	dispatcher ports.Dispatcher,
	gen *ids.Generator,
	log *slog.Logger,
) *Service {
	return &Service{
		records:    records,
		cases:      cases,
		classifier: classifier,
		policy:     policy,
		queue:      queue,
		auditor:    auditor,
		dispatcher: dispatcher,
		ids:        gen,
		log:        log,
		now:        time.Now,
	}
}

// Submit runs one pipeline invocation. The pending record is persisted before
// classification so a crash or timeout mid-classification leaves a
// recoverable record, never a lost submission. After the persist the context
// is detached from the caller: a client disconnect cannot abandon the record
// short of a moderation or terminal state.
func (s *Service) Submit(ctx context.Context, sub domain.Submission) (domain.VerificationRecord, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		return domain.VerificationRecord{}, domain.E(domain.KindInvalidSubmission, "submission text is empty")
	}
	if strings.TrimSpace(sub.Sender) == "" {
		return domain.VerificationRecord{}, domain.E(domain.KindInvalidSubmission, "sender identifier missing")
	}

	now := s.now().UTC()
	rec := domain.VerificationRecord{
		ID:                 s.ids.Verification(),
		Channel:            sub.Channel,
		Sender:             sub.Sender,
		Text:               text,
		MediaRef:           sub.MediaRef,
		Verdict:            domain.VerdictUnverified,
		State:              domain.StatePendingClassification,
		CreatedAt:          now,
		LastTransitionedAt: now,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return domain.VerificationRecord{}, err
	}

	// The record exists; finish the pipeline even if the caller goes away.
	// Detach before the audit append too, or a disconnect right after the
	// persist silently drops the submitted entry.
	ctx = context.WithoutCancel(ctx)

	s.auditor.Record(ctx, domain.AuditEntry{
		Action:   "submitted",
		RecordID: rec.ID,
		Details:  map[string]string{"channel": string(sub.Channel), "sender": sub.Sender},
	})
	metrics.Submissions.WithLabelValues(string(sub.Channel)).Inc()

	cls, err := s.classifier.Classify(ctx, text)
	if err != nil {
		// The failsafe adapter absorbs outages, so an error here means a
		// misbehaving classifier implementation. Same downgrade applies.
		s.log.Warn("classifier returned error, treating as unavailable", "record_id", rec.ID, "err", err)
		cls = ports.Classification{
			Verdict:    domain.VerdictUnverified,
			Confidence: 0,
			Reasoning:  []string{"Classification unavailable"},
		}
	}
	// Classifiers are pluggable; never trust them to stay in range.
	if cls.Confidence < 0 {
		cls.Confidence = 0
	} else if cls.Confidence > 1 {
		cls.Confidence = 1
	}
	metrics.Verdicts.WithLabelValues(string(cls.Verdict)).Inc()

	return s.triage(ctx, rec, cls)
}

func (s *Service) triage(ctx context.Context, rec domain.VerificationRecord, cls ports.Classification) (domain.VerificationRecord, error) {
	decision := s.policy.Decide(cls.Confidence, cls.Verdict)
	patch := ports.RecordPatch{
		Verdict:         &cls.Verdict,
		Confidence:      &cls.Confidence,
		AppendReasoning: cls.Reasoning,
		Sources:         cls.Sources,
	}

	if decision.AutoPublish {
		updated, err := s.records.UpdateState(ctx, rec.ID, domain.StatePendingClassification, domain.StateAutoPublished, patch)
		if err != nil {
			return domain.VerificationRecord{}, err
		}
		s.auditor.Record(ctx, domain.AuditEntry{
			Action:   "auto_published",
			RecordID: rec.ID,
			Details: map[string]string{
				"verdict":    string(cls.Verdict),
				"confidence": fmt.Sprintf("%.2f", cls.Confidence),
			},
		})
		metrics.AutoPublished.Inc()
		s.notifyPublished(updated)
		return updated, nil
	}

	updated, err := s.records.UpdateState(ctx, rec.ID, domain.StatePendingClassification, domain.StateInModeration, patch)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	if _, err := s.queue.Enqueue(ctx, updated, decision.Priority); err != nil {
		return domain.VerificationRecord{}, err
	}
	s.auditor.Record(ctx, domain.AuditEntry{
		Action:   "queued_for_moderation",
		RecordID: rec.ID,
		Details: map[string]string{
			"priority":   string(decision.Priority),
			"verdict":    string(cls.Verdict),
			"confidence": fmt.Sprintf("%.2f", cls.Confidence),
		},
	})
	return updated, nil
}

// notifyPublished hands the published verdict to the delivery layer.
// Fire-and-forget: delivery can never fail or stall a state transition.
func (s *Service) notifyPublished(rec domain.VerificationRecord) {
	if s.dispatcher == nil {
		return
	}
	msg := fmt.Sprintf("Your claim has been checked: %s.", rec.Verdict)
	if len(rec.Reasoning) > 0 {
		msg = fmt.Sprintf("%s %s", msg, rec.Reasoning[len(rec.Reasoning)-1])
	}
	s.dispatcher.Enqueue(ports.OutboundMessage{
		Channel:   string(rec.Channel),
		Recipient: rec.Sender,
		Body:      msg,
	})
}
