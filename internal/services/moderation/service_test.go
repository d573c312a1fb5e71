package moderation_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factline/internal/adapters/memstore"
	"factline/internal/domain"
	"factline/internal/ids"
	"factline/internal/ports"
	auditsvc "factline/internal/services/audit"
	"factline/internal/services/moderation"
)

type captureDispatcher struct {
	mu   sync.Mutex
	msgs []ports.OutboundMessage
}

func (c *captureDispatcher) Enqueue(msg ports.OutboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *captureDispatcher) Messages() []ports.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.OutboundMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func newService(t *testing.T) (*moderation.Service, *memstore.Store) {
	t.Helper()
	svc, store, _ := newServiceWithDispatcher(t)
	return svc, store
}

func newServiceWithDispatcher(t *testing.T) (*moderation.Service, *memstore.Store, *captureDispatcher) {
	t.Helper()
	store := memstore.New()
	auditor := auditsvc.New(store, slog.Default())
	dispatcher := &captureDispatcher{}
	svc := moderation.New(store, store, auditor, dispatcher, ids.NewGenerator(), moderation.SLAWindows{
		Urgent: 2 * time.Hour, Normal: 24 * time.Hour, Low: 72 * time.Hour,
	})
	return svc, store, dispatcher
}

// seedInModeration creates a record already transitioned into moderation.
func seedInModeration(t *testing.T, store *memstore.Store, id string) domain.VerificationRecord {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, domain.VerificationRecord{
		ID:                 id,
		Channel:            domain.ChannelWebhook,
		Sender:             "+23276000001",
		Text:               "claim text",
		Verdict:            domain.VerdictUnverified,
		State:              domain.StatePendingClassification,
		CreatedAt:          now,
		LastTransitionedAt: now,
	}))
	confidence := 0.45
	verdict := domain.VerdictUnverified
	rec, err := store.UpdateState(ctx, id, domain.StatePendingClassification, domain.StateInModeration, ports.RecordPatch{
		Verdict:         &verdict,
		Confidence:      &confidence,
		AppendReasoning: []string{"low confidence"},
	})
	require.NoError(t, err)
	return rec
}

func TestEnqueueSetsSLAFromPriority(t *testing.T) {
	svc, store := newService(t)
	rec := seedInModeration(t, store, "VER-1")

	item, err := svc.Enqueue(context.Background(), rec, domain.PriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, item.RecordID)
	assert.Equal(t, 2*time.Hour, item.SLADeadline.Sub(item.EnqueuedAt))
}

func TestEnqueueTwiceIsAlreadyQueued(t *testing.T) {
	svc, store := newService(t)
	rec := seedInModeration(t, store, "VER-1")

	_, err := svc.Enqueue(context.Background(), rec, domain.PriorityNormal)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), rec, domain.PriorityNormal)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAlreadyQueued))
}

func TestListOrdersByPriorityThenAge(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	recA := seedInModeration(t, store, "VER-a")
	recB := seedInModeration(t, store, "VER-b")
	recC := seedInModeration(t, store, "VER-c")

	_, err := svc.Enqueue(ctx, recA, domain.PriorityLow)
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, recB, domain.PriorityUrgent)
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, recC, domain.PriorityUrgent)
	require.NoError(t, err)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "VER-b", views[0].Item.RecordID) // urgent, oldest first
	assert.Equal(t, "VER-c", views[1].Item.RecordID)
	assert.Equal(t, "VER-a", views[2].Item.RecordID)
}

func TestListSkipsItemsWhoseRecordSettled(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	recA := seedInModeration(t, store, "VER-a")
	recB := seedInModeration(t, store, "VER-b")
	_, err := svc.Enqueue(ctx, recA, domain.PriorityNormal)
	require.NoError(t, err)
	itemB, err := svc.Enqueue(ctx, recB, domain.PriorityNormal)
	require.NoError(t, err)

	// Record B is published straight through the store, as after a crash
	// between the record update and the queue update.
	verdict := domain.VerdictFalse
	_, err = store.UpdateState(ctx, recB.ID, domain.StateInModeration, domain.StatePublished, ports.RecordPatch{
		Verdict:         &verdict,
		AppendReasoning: []string{"resolved out of band"},
	})
	require.NoError(t, err)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, recA.ID, views[0].Item.RecordID)

	// the orphan item was healed, not just hidden
	after, err := store.GetItem(ctx, itemB.ID)
	require.NoError(t, err)
	assert.True(t, after.Resolved)
}

func TestResolveApproveAsOverridesVerdict(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	rec := seedInModeration(t, store, "VER-1")
	item, err := svc.Enqueue(ctx, rec, domain.PriorityUrgent)
	require.NoError(t, err)

	updated, err := svc.Resolve(ctx, item.ID, moderation.Decision{
		Action:  moderation.ActionApproveAs,
		Verdict: domain.VerdictUnverified,
	}, "moderator1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePublished, updated.State)
	assert.Equal(t, domain.VerdictUnverified, updated.Verdict)

	tail, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "moderation_resolved", tail[0].Action)
	assert.Equal(t, "moderator1", tail[0].Actor)
	assert.Equal(t, string(domain.VerdictUnverified), tail[0].Details["verdict_after"])
}

func TestResolveApproveAsNotifiesSubmitter(t *testing.T) {
	ctx := context.Background()
	svc, store, dispatcher := newServiceWithDispatcher(t)
	rec := seedInModeration(t, store, "VER-1")
	item, err := svc.Enqueue(ctx, rec, domain.PriorityUrgent)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, item.ID, moderation.Decision{
		Action:  moderation.ActionApproveAs,
		Verdict: domain.VerdictFalse,
	}, "moderator1")
	require.NoError(t, err)

	msgs := dispatcher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, rec.Sender, msgs[0].Recipient)
	assert.Equal(t, string(rec.Channel), msgs[0].Channel)
	assert.Contains(t, msgs[0].Body, string(domain.VerdictFalse))
}

func TestResolveRejectDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	svc, store, dispatcher := newServiceWithDispatcher(t)
	rec := seedInModeration(t, store, "VER-1")
	item, err := svc.Enqueue(ctx, rec, domain.PriorityNormal)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, item.ID, moderation.Decision{Action: moderation.ActionReject}, "moderator1")
	require.NoError(t, err)
	assert.Empty(t, dispatcher.Messages())
}

func TestResolveReject(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	rec := seedInModeration(t, store, "VER-1")
	item, err := svc.Enqueue(ctx, rec, domain.PriorityNormal)
	require.NoError(t, err)

	updated, err := svc.Resolve(ctx, item.ID, moderation.Decision{Action: moderation.ActionReject}, "moderator2")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRejected, updated.State)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestResolveRequestMoreInfoKeepsItemOpen(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	rec := seedInModeration(t, store, "VER-1")
	item, err := svc.Enqueue(ctx, rec, domain.PriorityNormal)
	require.NoError(t, err)

	updated, err := svc.Resolve(ctx, item.ID, moderation.Decision{
		Action: moderation.ActionRequestMoreInfo,
		Note:   "Need the original forwarded message",
	}, "moderator1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateInModeration, updated.State)
	assert.Contains(t, updated.Reasoning[len(updated.Reasoning)-1], "Need the original forwarded message")

	after, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, after.Resolved)
	assert.True(t, after.SLADeadline.After(item.SLADeadline))
}

func TestResolveTwiceIsAlreadyResolvedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	rec := seedInModeration(t, store, "VER-1")
	item, err := svc.Enqueue(ctx, rec, domain.PriorityUrgent)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, item.ID, moderation.Decision{
		Action: moderation.ActionApproveAs, Verdict: domain.VerdictFalse,
	}, "moderator1")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, item.ID, moderation.Decision{
		Action: moderation.ActionApproveAs, Verdict: domain.VerdictTrue,
	}, "moderator2")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAlreadyResolved))

	// verdict unchanged by the retried resolve
	after, err := store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictFalse, after.Verdict)
	assert.Equal(t, domain.StatePublished, after.State)
}

func TestResolveUnknownItem(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Resolve(context.Background(), "MQ-missing", moderation.Decision{Action: moderation.ActionReject}, "moderator1")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindItemNotFound))
}

func TestResolveApproveAsRequiresVerdict(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	rec := seedInModeration(t, store, "VER-1")
	item, err := svc.Enqueue(ctx, rec, domain.PriorityUrgent)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, item.ID, moderation.Decision{Action: moderation.ActionApproveAs}, "moderator1")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidSubmission))
}

func TestSLABreachDerivedAtReadTime(t *testing.T) {
	now := time.Now().UTC()
	item := domain.QueueItem{SLADeadline: now.Add(time.Hour)}
	assert.False(t, item.Breached(now))
	assert.True(t, item.Breached(now.Add(2*time.Hour)))
}
