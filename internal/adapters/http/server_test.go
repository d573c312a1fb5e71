package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "factline/internal/adapters/http"
	"factline/internal/adapters/memstore"
	"factline/internal/domain"
	"factline/internal/ids"
	"factline/internal/ports"
	auditsvc "factline/internal/services/audit"
	"factline/internal/services/classify"
	"factline/internal/services/export"
	ingestsvc "factline/internal/services/ingest"
	modsvc "factline/internal/services/moderation"
	"factline/internal/services/triage"
)

type noopDispatcher struct {
	mu   sync.Mutex
	msgs []ports.OutboundMessage
}

func (d *noopDispatcher) Enqueue(msg ports.OutboundMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
}

func (d *noopDispatcher) messages() []ports.OutboundMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ports.OutboundMessage(nil), d.msgs...)
}

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store, *noopDispatcher) {
	t.Helper()
	store := memstore.New()
	log := slog.Default()
	gen := ids.NewGenerator()
	auditor := auditsvc.New(store, log)
	dispatcher := &noopDispatcher{}
	classifier := classify.NewFailsafe(classify.New(classify.DefaultRules()), log)
	moderation := modsvc.New(store, store, auditor, dispatcher, gen, modsvc.SLAWindows{
		Urgent: 2 * time.Hour, Normal: 24 * time.Hour, Low: 72 * time.Hour,
	})
	gateway := ingestsvc.New(store, store, classifier, triage.NewPolicy(0.85, 0.5),
		moderation, auditor, dispatcher, gen, log)
	srv := httpadapter.New(gateway, moderation, store, store, auditor, dispatcher, "test-token", 100, log)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, store, dispatcher
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestWebhookVerifyHandshake(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/webhook?hub.mode=subscribe&hub.verify_token=test-token&hub.challenge=12345")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, "12345", buf.String())

	resp, err = http.Get(ts.URL + "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebhookSubmitAutoPublishScenario(t *testing.T) {
	ts, store, dispatcher := newTestServer(t)

	resp := postJSON(t, ts.URL+"/webhook", map[string]any{
		"from": "+23276000001",
		"type": "text",
		"text": "Government giving Le500,000 to all citizens",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[map[string]any](t, resp)
	assert.Equal(t, "FALSE", rec["verdict"])
	assert.Equal(t, 0.92, rec["confidence"])
	assert.Equal(t, "AUTO_PUBLISHED", rec["state"])

	tail, err := store.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "auto_published", tail[0].Action)
	assert.Equal(t, "submitted", tail[1].Action)

	msgs := dispatcher.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+23276000001", msgs[0].Recipient)
}

func TestModerationFlowScenario(t *testing.T) {
	ts, _, dispatcher := newTestServer(t)

	// 0.45 confidence claim lands in moderation as urgent (0.45 < 0.5)
	resp := postJSON(t, ts.URL+"/webhook", map[string]any{
		"from": "+23276000009",
		"type": "text",
		"text": "New education policy starting next year",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[map[string]any](t, resp)
	assert.Equal(t, "IN_MODERATION", rec["state"])

	listResp, err := http.Get(ts.URL + "/moderation/queue")
	require.NoError(t, err)
	queue := decode[[]map[string]any](t, listResp)
	require.Len(t, queue, 1)
	assert.Equal(t, "urgent", queue[0]["priority"])
	assert.Equal(t, false, queue[0]["sla_breached"])
	itemID := queue[0]["item_id"].(string)

	resolveResp := postJSON(t, ts.URL+"/moderation/queue/"+itemID+"/resolve", map[string]any{
		"decision": "approve_as",
		"verdict":  "UNVERIFIED",
		"actor":    "moderator1",
	})
	require.Equal(t, http.StatusOK, resolveResp.StatusCode)
	resolved := decode[map[string]any](t, resolveResp)
	assert.Equal(t, "PUBLISHED", resolved["state"])
	assert.Equal(t, "UNVERIFIED", resolved["verdict"])

	// the submitter hears back on the moderated path too
	msgs := dispatcher.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+23276000009", msgs[0].Recipient)

	// retrying the same item is a benign conflict
	again := postJSON(t, ts.URL+"/moderation/queue/"+itemID+"/resolve", map[string]any{
		"decision": "approve_as",
		"verdict":  "TRUE",
		"actor":    "moderator2",
	})
	assert.Equal(t, http.StatusConflict, again.StatusCode)
	body := decode[map[string]map[string]string](t, again)
	assert.Equal(t, "already_resolved", body["error"]["kind"])
}

func TestWebhookUnknownTypeDegradesToPlaceholder(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/webhook", map[string]any{
		"from": "+23276000004",
		"type": "sticker",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[map[string]any](t, resp)
	assert.Equal(t, "[unsupported:sticker]", rec["text"])
}

func TestWebhookEmptySubmissionRejected(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/webhook", map[string]any{
		"from": "+23276000004",
		"type": "text",
		"text": "   ",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[map[string]map[string]string](t, resp)
	assert.Equal(t, "invalid_submission", body["error"]["kind"])
}

func TestDirectReportCreatesCase(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/reports", map[string]any{
		"sender_phone":  "+23276000002",
		"incident_type": "mobile money fraud",
		"description":   "Caller asked for my PIN",
		"amount_lost":   500,
		"evidence":      []string{"screenshot-1"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Contains(t, body["case_id"], "CASE-")
	verification := body["verification"].(map[string]any)
	assert.Contains(t, verification["id"], "VER-")
}

func TestStatsAndListVerifications(t *testing.T) {
	ts, _, _ := newTestServer(t)

	postJSON(t, ts.URL+"/webhook", map[string]any{
		"from": "a", "type": "text", "text": "Government giving Le500,000 to all citizens",
	}).Body.Close()
	postJSON(t, ts.URL+"/webhook", map[string]any{
		"from": "b", "type": "text", "text": "random unmatched claim",
	}).Body.Close()

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	stats := decode[map[string]any](t, resp)
	assert.Equal(t, float64(2), stats["total"])

	resp, err = http.Get(ts.URL + "/verifications?state=AUTO_PUBLISHED")
	require.NoError(t, err)
	recs := decode[[]map[string]any](t, resp)
	require.Len(t, recs, 1)
	assert.Equal(t, "FALSE", recs[0]["verdict"])
}

func TestExportVerificationsCSVRoundTrip(t *testing.T) {
	ts, _, _ := newTestServer(t)

	postJSON(t, ts.URL+"/webhook", map[string]any{
		"from": "a", "type": "text", "text": `claim with, "comma" and quotes`,
	}).Body.Close()

	resp, err := http.Get(ts.URL + "/export/verifications")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	parsed, err := export.ParseVerificationsCSV(resp.Body)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, `claim with, "comma" and quotes`, parsed[0].Text)
	assert.Equal(t, domain.VerdictUnverified, parsed[0].Verdict)
}

func TestBroadcastQueuesMessages(t *testing.T) {
	ts, store, dispatcher := newTestServer(t)

	resp := postJSON(t, ts.URL+"/broadcast", map[string]any{
		"channel":    "sms",
		"recipients": []string{"+232a", "+232b", "+232c"},
		"message":    "Verified alert: the circulating cash-handout claim is FALSE",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode[map[string]int](t, resp)
	assert.Equal(t, 3, body["queued"])
	assert.Len(t, dispatcher.messages(), 3)

	tail, err := store.ListRecent(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "broadcast", tail[0].Action)
}

func TestGetVerificationNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/verifications/VER-unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[map[string]map[string]string](t, resp)
	assert.Equal(t, "not_found", body["error"]["kind"])
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, strings.Contains(resp.Header.Get("Content-Type"), "html"))
}
