package domain

import "time"

// Core domain models used internally. Wire shapes for the HTTP adapter live
// in internal/adapters/http; keep these decoupled where helpful.

// Channel identifies where a submission came from.
type Channel string

const (
	ChannelWebhook      Channel = "webhook"
	ChannelDirectReport Channel = "direct-report"
	ChannelSMS          Channel = "sms"
)

// Verdict is the classification outcome assigned to a claim.
type Verdict string

const (
	VerdictTrue       Verdict = "TRUE"
	VerdictFalse      Verdict = "FALSE"
	VerdictMisleading Verdict = "MISLEADING"
	VerdictUnverified Verdict = "UNVERIFIED"
)

// Valid reports whether v is one of the four defined verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTrue, VerdictFalse, VerdictMisleading, VerdictUnverified:
		return true
	}
	return false
}

// State is the lifecycle position of a verification record.
type State string

const (
	StatePendingClassification State = "PENDING_CLASSIFICATION"
	StateAutoPublished         State = "AUTO_PUBLISHED"
	StateInModeration          State = "IN_MODERATION"
	StatePublished             State = "PUBLISHED"
	StateRejected              State = "REJECTED"
)

// Terminal reports whether no further transition is permitted from s.
func (s State) Terminal() bool {
	switch s {
	case StateAutoPublished, StatePublished, StateRejected:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows s -> next.
// IN_MODERATION -> IN_MODERATION is the "more info requested" self-loop.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePendingClassification:
		return next == StateAutoPublished || next == StateInModeration
	case StateInModeration:
		return next == StatePublished || next == StateRejected || next == StateInModeration
	}
	return false
}

// Priority orders moderation queue items.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank maps priorities to sort order, lower first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityNormal:
		return 1
	default:
		return 2
	}
}

// Submission is the raw normalized input. Immutable once created.
type Submission struct {
	Channel    Channel
	Sender     string
	Text       string
	MediaRef   string
	ReceivedAt time.Time
}

// Source is a supporting reference for a verdict.
type Source struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	AuthorityScore float64 `json:"authority_score"`
}

// VerificationRecord is the durable unit of work in the pipeline.
type VerificationRecord struct {
	ID                 string
	Channel            Channel
	Sender             string
	Text               string
	MediaRef           string
	Verdict            Verdict
	Confidence         float64
	Reasoning          []string
	Sources            []Source
	State              State
	CreatedAt          time.Time
	LastTransitionedAt time.Time
}

// QueueItem is a moderation-queue view over a record in IN_MODERATION.
// It references the record by id and never owns its data.
type QueueItem struct {
	ID          string
	RecordID    string
	Priority    Priority
	EnqueuedAt  time.Time
	SLADeadline time.Time
	Resolved    bool
}

// Breached reports whether the item is past its SLA deadline at now.
// Derived at read time, never persisted.
func (q QueueItem) Breached(now time.Time) bool {
	return now.After(q.SLADeadline)
}

// AuditEntry is an immutable fact about a state-changing action.
type AuditEntry struct {
	ID        int64
	Action    string
	Actor     string
	RecordID  string
	Details   map[string]string
	CreatedAt time.Time
}

// ActorSystem marks audit entries written by the pipeline itself.
const ActorSystem = "system"

// Case is a direct incident report. Cases and verifications are related but
// separately numbered.
type Case struct {
	ID             string
	SenderPhone    string
	IncidentType   string
	Description    string
	AmountLost     float64
	Evidence       []string
	VerificationID string
	CreatedAt      time.Time
}
