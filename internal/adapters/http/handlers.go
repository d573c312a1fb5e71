package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"factline/internal/domain"
	"factline/internal/ports"
	"factline/internal/services/export"
	"factline/internal/services/ingest"
	"factline/internal/services/moderation"
)

// recordResponse is the wire shape for a verification record.
type recordResponse struct {
	ID                 string          `json:"id"`
	Channel            string          `json:"channel"`
	Sender             string          `json:"sender"`
	Text               string          `json:"text"`
	Verdict            string          `json:"verdict"`
	Confidence         float64         `json:"confidence"`
	Reasoning          []string        `json:"reasoning"`
	Sources            []domain.Source `json:"sources"`
	State              string          `json:"state"`
	CreatedAt          time.Time       `json:"created_at"`
	LastTransitionedAt time.Time       `json:"last_transitioned_at"`
}

func toRecordResponse(rec domain.VerificationRecord) recordResponse {
	return recordResponse{
		ID:                 rec.ID,
		Channel:            string(rec.Channel),
		Sender:             rec.Sender,
		Text:               rec.Text,
		Verdict:            string(rec.Verdict),
		Confidence:         rec.Confidence,
		Reasoning:          rec.Reasoning,
		Sources:            rec.Sources,
		State:              string(rec.State),
		CreatedAt:          rec.CreatedAt,
		LastTransitionedAt: rec.LastTransitionedAt,
	}
}

// Webhook handshake: the messaging platform sends a challenge that must be
// echoed back when the verify token matches.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

type webhookMessage struct {
	From     string `json:"from"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	Caption  string `json:"caption"`
	MediaRef string `json:"media_ref"`
	Channel  string `json:"channel"`
}

func (s *Server) handleWebhookMessage(w http.ResponseWriter, r *http.Request) {
	var msg webhookMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "malformed payload: %v", err))
		return
	}
	channel := domain.ChannelWebhook
	if msg.Channel == string(domain.ChannelSMS) {
		channel = domain.ChannelSMS
	}
	sub := ingest.Normalize(ingest.InboundMessage{
		From:     msg.From,
		Type:     msg.Type,
		Text:     msg.Text,
		Caption:  msg.Caption,
		MediaRef: msg.MediaRef,
	}, channel, time.Now().UTC())

	rec, err := s.gateway.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

type reportRequest struct {
	SenderPhone  string   `json:"sender_phone"`
	IncidentType string   `json:"incident_type"`
	Description  string   `json:"description"`
	AmountLost   float64  `json:"amount_lost"`
	Evidence     []string `json:"evidence"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "malformed payload: %v", err))
		return
	}
	c, rec, err := s.gateway.SubmitReport(r.Context(), ingest.Report{
		SenderPhone:  req.SenderPhone,
		IncidentType: req.IncidentType,
		Description:  req.Description,
		AmountLost:   req.AmountLost,
		Evidence:     req.Evidence,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"case_id":      c.ID,
		"verification": toRecordResponse(rec),
	})
}

func (s *Server) recordQueryFromRequest(r *http.Request) (ports.RecordQuery, error) {
	q := r.URL.Query()
	out := ports.RecordQuery{
		Verdict: domain.Verdict(q.Get("verdict")),
		State:   domain.State(q.Get("state")),
		Sender:  q.Get("sender"),
	}
	var err error
	if out.From, err = parseTimeParam(q.Get("from")); err != nil {
		return out, err
	}
	if out.To, err = parseTimeParam(q.Get("to")); err != nil {
		return out, err
	}
	out.Limit = parseIntParam(q.Get("limit"), s.maxPageSize)
	if out.Limit > s.maxPageSize {
		out.Limit = s.maxPageSize
	}
	out.Offset = parseIntParam(q.Get("offset"), 0)
	return out, nil
}

func (s *Server) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	query, err := s.recordQueryFromRequest(r)
	if err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "%v", err))
		return
	}
	recs, err := s.records.Query(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

type queueItemResponse struct {
	ItemID      string    `json:"item_id"`
	RecordID    string    `json:"record_id"`
	Priority    string    `json:"priority"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	SLADeadline time.Time `json:"sla_deadline"`
	SLABreached bool      `json:"sla_breached"`
	Text        string    `json:"text"`
	Verdict     string    `json:"verdict"`
	Confidence  float64   `json:"confidence"`
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	views, err := s.moderation.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]queueItemResponse, 0, len(views))
	for _, v := range views {
		out = append(out, queueItemResponse{
			ItemID:      v.Item.ID,
			RecordID:    v.Item.RecordID,
			Priority:    string(v.Item.Priority),
			EnqueuedAt:  v.Item.EnqueuedAt,
			SLADeadline: v.Item.SLADeadline,
			SLABreached: v.Breached,
			Text:        v.Record.Text,
			Verdict:     string(v.Record.Verdict),
			Confidence:  v.Record.Confidence,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type resolveRequest struct {
	Decision string `json:"decision"`
	Verdict  string `json:"verdict"`
	Note     string `json:"note"`
	Actor    string `json:"actor"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "malformed payload: %v", err))
		return
	}
	if req.Actor == "" {
		writeError(w, domain.E(domain.KindInvalidSubmission, "actor is required"))
		return
	}
	rec, err := s.moderation.Resolve(r.Context(), chi.URLParam(r, "itemID"), moderation.Decision{
		Action:  req.Decision,
		Verdict: domain.Verdict(req.Verdict),
		Note:    req.Note,
	}, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.records.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAuditTail(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r.URL.Query().Get("limit"), 50)
	entries, err := s.auditor.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExportVerifications(w http.ResponseWriter, r *http.Request) {
	query, err := s.recordQueryFromRequest(r)
	if err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "%v", err))
		return
	}
	recs, err := s.records.Query(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		out := make([]recordResponse, 0, len(recs))
		for _, rec := range recs {
			out = append(out, toRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="verifications.csv"`)
	if err := export.VerificationsCSV(w, recs); err != nil {
		s.log.Error("csv export failed", "err", err)
	}
}

func (s *Server) handleExportReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "%v", err))
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "%v", err))
		return
	}
	cases, err := s.cases.ListCases(r.Context(), from, to, parseIntParam(q.Get("limit"), s.maxPageSize))
	if err != nil {
		writeError(w, err)
		return
	}
	if q.Get("format") == "json" {
		writeJSON(w, http.StatusOK, cases)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="reports.csv"`)
	if err := export.CasesCSV(w, cases); err != nil {
		s.log.Error("csv export failed", "err", err)
	}
}

type broadcastRequest struct {
	Channel    string   `json:"channel"`
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.E(domain.KindInvalidSubmission, "malformed payload: %v", err))
		return
	}
	if req.Message == "" || len(req.Recipients) == 0 {
		writeError(w, domain.E(domain.KindInvalidSubmission, "message and recipients are required"))
		return
	}
	for _, recipient := range req.Recipients {
		s.dispatcher.Enqueue(ports.OutboundMessage{
			Channel:   req.Channel,
			Recipient: recipient,
			Body:      req.Message,
		})
	}
	s.auditor.Record(r.Context(), domain.AuditEntry{
		Action:  "broadcast",
		Details: map[string]string{"channel": req.Channel, "recipients": strconv.Itoa(len(req.Recipients))},
	})
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": len(req.Recipients)})
}

func parseIntParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", raw)
}
