// Package moderation is the human-review backlog over verification records.
// The queue references records by id and never owns verdict or confidence;
// only the record store mutates those.
package moderation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"factline/internal/domain"
	"factline/internal/ids"
	"factline/internal/metrics"
	"factline/internal/ports"
)

// SLAWindows are the review windows per priority tier.
type SLAWindows struct {
	Urgent time.Duration
	Normal time.Duration
	Low    time.Duration
}

func (w SLAWindows) For(p domain.Priority) time.Duration {
	switch p {
	case domain.PriorityUrgent:
		return w.Urgent
	case domain.PriorityNormal:
		return w.Normal
	default:
		return w.Low
	}
}

// Decision actions accepted by Resolve.
const (
	ActionApproveAs       = "approve_as"
	ActionReject          = "reject"
	ActionRequestMoreInfo = "request_more_info"
)

// Decision is a moderator's disposition for a queue item. ApproveAs carries
// the target verdict explicitly; which button was pressed is never enough.
type Decision struct {
	Action  string
	Verdict domain.Verdict
	Note    string
}

// View joins a queue item with its record for the review UI, with the SLA
// breach flag computed at read time.
type View struct {
	Item     domain.QueueItem
	Record   domain.VerificationRecord
	Breached bool
}

type Service struct {
	queue      ports.QueueStore
	records    ports.RecordStore
	auditor    ports.Auditor
	dispatcher ports.Dispatcher
	ids        *ids.Generator
	sla        SLAWindows
	now        func() time.Time
}

func New(queue ports.QueueStore, records ports.RecordStore, auditor ports.Auditor, dispatcher ports.Dispatcher, gen *ids.Generator, sla SLAWindows) *Service {
	return &Service{queue: queue, records: records, auditor: auditor, dispatcher: dispatcher, ids: gen, sla: sla, now: time.Now}
}

// Enqueue opens a queue item for a record entering moderation. Fails with
// already_queued if the record has an open item.
func (s *Service) Enqueue(ctx context.Context, rec domain.VerificationRecord, priority domain.Priority) (domain.QueueItem, error) {
	now := s.now().UTC()
	item := domain.QueueItem{
		ID:          s.ids.QueueItem(),
		RecordID:    rec.ID,
		Priority:    priority,
		EnqueuedAt:  now,
		SLADeadline: now.Add(s.sla.For(priority)),
	}
	if err := s.queue.Insert(ctx, item); err != nil {
		return domain.QueueItem{}, err
	}
	return item, nil
}

// List returns the open backlog ordered by priority (urgent first) then
// oldest-enqueued-first. Recomputed from storage on every call.
func (s *Service) List(ctx context.Context) ([]View, error) {
	items, err := s.queue.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority.Rank() != items[j].Priority.Rank() {
			return items[i].Priority.Rank() < items[j].Priority.Rank()
		}
		return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
	})
	now := s.now().UTC()
	views := make([]View, 0, len(items))
	for _, item := range items {
		rec, err := s.records.GetByID(ctx, item.RecordID)
		if err != nil {
			return nil, err
		}
		if rec.State != domain.StateInModeration {
			// A crash between the record update and the queue update leaves
			// an open item pointing at a settled record. Heal it here rather
			// than showing it in the backlog.
			_ = s.queue.MarkResolved(ctx, item.ID)
			continue
		}
		views = append(views, View{Item: item, Record: rec, Breached: item.Breached(now)})
	}
	return views, nil
}

// Resolve applies a moderator decision to a queue item. Stale views resolve
// to already_resolved so callers can refresh and retry instead of crashing.
func (s *Service) Resolve(ctx context.Context, itemID string, decision Decision, actor string) (domain.VerificationRecord, error) {
	item, err := s.queue.GetItem(ctx, itemID)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	if item.Resolved {
		return domain.VerificationRecord{}, domain.E(domain.KindAlreadyResolved, "queue item %s already resolved", itemID)
	}
	rec, err := s.records.GetByID(ctx, item.RecordID)
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	if rec.State != domain.StateInModeration {
		return domain.VerificationRecord{}, domain.E(domain.KindAlreadyResolved, "record %s is %s", rec.ID, rec.State)
	}
	before := rec.Verdict

	var updated domain.VerificationRecord
	switch decision.Action {
	case ActionApproveAs:
		if !decision.Verdict.Valid() {
			return domain.VerificationRecord{}, domain.E(domain.KindInvalidSubmission, "approve_as requires a verdict, got %q", decision.Verdict)
		}
		verdict := decision.Verdict
		updated, err = s.records.UpdateState(ctx, rec.ID, domain.StateInModeration, domain.StatePublished, ports.RecordPatch{
			Verdict:         &verdict,
			AppendReasoning: []string{fmt.Sprintf("Approved as %s by %s", verdict, actor)},
		})
	case ActionReject:
		updated, err = s.records.UpdateState(ctx, rec.ID, domain.StateInModeration, domain.StateRejected, ports.RecordPatch{
			AppendReasoning: []string{fmt.Sprintf("Rejected by %s", actor)},
		})
	case ActionRequestMoreInfo:
		note := decision.Note
		if note == "" {
			note = "More information requested"
		}
		updated, err = s.records.UpdateState(ctx, rec.ID, domain.StateInModeration, domain.StateInModeration, ports.RecordPatch{
			AppendReasoning: []string{fmt.Sprintf("%s (by %s)", note, actor)},
		})
	default:
		return domain.VerificationRecord{}, domain.E(domain.KindInvalidSubmission, "unknown decision action %q", decision.Action)
	}
	if err != nil {
		// A concurrent resolve can win between our check and the update; the
		// store then reports a terminal state. That is a stale view, not a bug.
		if domain.IsKind(err, domain.KindTerminalState) {
			return domain.VerificationRecord{}, domain.E(domain.KindAlreadyResolved, "record %s resolved concurrently", rec.ID)
		}
		return domain.VerificationRecord{}, err
	}

	if decision.Action == ActionRequestMoreInfo {
		if err := s.queue.ExtendSLA(ctx, itemID, s.now().UTC().Add(s.sla.For(item.Priority))); err != nil {
			return domain.VerificationRecord{}, err
		}
	} else {
		if err := s.queue.MarkResolved(ctx, itemID); err != nil {
			return domain.VerificationRecord{}, err
		}
	}

	if decision.Action == ActionApproveAs {
		s.notifyPublished(updated)
	}

	s.auditor.Record(ctx, domain.AuditEntry{
		Action:   "moderation_resolved",
		Actor:    actor,
		RecordID: rec.ID,
		Details: map[string]string{
			"decision":       decision.Action,
			"verdict_before": string(before),
			"verdict_after":  string(updated.Verdict),
		},
	})
	metrics.ModerationResolved.WithLabelValues(decision.Action).Inc()
	return updated, nil
}

// notifyPublished hands the moderator's verdict to the delivery layer.
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
