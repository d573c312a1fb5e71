package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	httpadapter "factline/internal/adapters/http"
	"factline/internal/adapters/memstore"
	pg "factline/internal/adapters/postgres"
	"factline/internal/config"
	"factline/internal/ids"
	"factline/internal/ports"
	auditsvc "factline/internal/services/audit"
	"factline/internal/services/classify"
	ingestsvc "factline/internal/services/ingest"
	modsvc "factline/internal/services/moderation"
	"factline/internal/services/notify"
	"factline/internal/services/triage"
	"factline/internal/workers/dispatch"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "factline",
		Usage: "claim verification and moderation pipeline",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: runMigrate,
			},
		},
	}
	app.RunAndExitOnError()
}

func runMigrate(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return pg.Migrate(cfg.DatabaseURL)
}

func runServe(cctx *cli.Context) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Warn("config incomplete, falling back where possible", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: postgres when configured, in-memory otherwise (local runs).
	var (
		records ports.RecordStore
		queue   ports.QueueStore
		auditDB ports.AuditStore
		cases   ports.CaseStore
	)
	if cfg.DatabaseURL != "" {
		if err := pg.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		records, queue, auditDB, cases = db, db, db, db
		log.Info("using postgres store")
	} else {
		mem := memstore.New()
		records, queue, auditDB, cases = mem, mem, mem, mem
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	// Outbound notification delivery, decoupled from the state machine.
	var sender ports.Sender
	if cfg.NotifyWebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.NotifyWebhookURL)
	} else {
		sender = notify.NewMemorySender()
		log.Warn("NOTIFY_WEBHOOK_URL not set, notifications stay in memory")
	}
	dispatcher := dispatch.New(sender, log, 256)
	dispatcher.Run(ctx, cfg.NotifyWorkers)

	gen := ids.NewGenerator()
	auditor := auditsvc.New(auditDB, log)
	classifier := classify.NewFailsafe(classify.New(classify.DefaultRules()), log)
	policy := triage.NewPolicy(cfg.TriageHigh, cfg.TriageLow)
	moderation := modsvc.New(queue, records, auditor, dispatcher, gen, modsvc.SLAWindows{
		Urgent: cfg.SLAUrgent,
		Normal: cfg.SLANormal,
		Low:    cfg.SLALow,
	})
	gateway := ingestsvc.New(records, cases, classifier, policy, moderation, auditor, dispatcher, gen, log)

	srv := httpadapter.New(gateway, moderation, records, cases, auditor, dispatcher,
		cfg.WebhookVerifyToken, cfg.MaxPageSize, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		dispatcher.Wait()
		return nil
	case err := <-errCh:
		return err
	}
}
