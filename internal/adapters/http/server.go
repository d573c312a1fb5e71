package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"factline/internal/ports"
	"factline/internal/services/ingest"
	"factline/internal/services/moderation"
)

// Server exposes the pipeline and the dashboard read APIs.
type Server struct {
	gateway     *ingest.Service
	moderation  *moderation.Service
	records     ports.RecordStore
	cases       ports.CaseStore
	auditor     ports.Auditor
	dispatcher  ports.Dispatcher
	verifyToken string
	maxPageSize int
	log         *slog.Logger
}

func New(
	gateway *ingest.Service,
	mod *moderation.Service,
	records ports.RecordStore,
	cases ports.CaseStore,
	auditor ports.Auditor,
	dispatcher ports.Dispatcher,
	verifyToken string,
	maxPageSize int,
	log *slog.Logger,
) *Server {
	return &Server{
		gateway:     gateway,
		moderation:  mod,
		records:     records,
		cases:       cases,
		auditor:     auditor,
		dispatcher:  dispatcher,
		verifyToken: verifyToken,
		maxPageSize: maxPageSize,
		log:         log,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/webhook", s.handleWebhookVerify)
	r.Post("/webhook", s.handleWebhookMessage)
	r.Post("/reports", s.handleReport)

	r.Get("/verifications", s.handleListVerifications)
	r.Get("/verifications/{id}", s.handleGetVerification)

	r.Get("/moderation/queue", s.handleListQueue)
	r.Post("/moderation/queue/{itemID}/resolve", s.handleResolve)

	r.Get("/stats", s.handleStats)
	r.Get("/audit", s.handleAuditTail)

	r.Get("/export/verifications", s.handleExportVerifications)
	r.Get("/export/reports", s.handleExportReports)

	r.Post("/broadcast", s.handleBroadcast)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
