package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is loaded from environment variables. The triage watermarks and SLA
// windows are operator-tunable without redeploying logic.
type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string

	// Webhook handshake token expected on GET /webhook.
	WebhookVerifyToken string

	// Triage watermarks. confidence >= High auto-publishes; < Low is urgent.
	TriageHigh float64
	TriageLow  float64

	// SLA review windows per priority tier.
	SLAUrgent time.Duration
	SLANormal time.Duration
	SLALow    time.Duration

	// Read API paging bound.
	MaxPageSize int

	// Outbound notification delivery.
	NotifyWorkers    int
	NotifyWebhookURL string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseFloat(v, 64); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:                getenv("APP_ENV", "development"),
		ListenAddr:         getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		WebhookVerifyToken: getenv("WEBHOOK_VERIFY_TOKEN", "factline"),
		TriageHigh:         getenvFloat("TRIAGE_HIGH_WATERMARK", 0.85),
		TriageLow:          getenvFloat("TRIAGE_LOW_WATERMARK", 0.5),
		SLAUrgent:          getenvDuration("SLA_URGENT", 2*time.Hour),
		SLANormal:          getenvDuration("SLA_NORMAL", 24*time.Hour),
		SLALow:             getenvDuration("SLA_LOW", 72*time.Hour),
		MaxPageSize:        getenvInt("MAX_PAGE_SIZE", 100),
		NotifyWorkers:      getenvInt("NOTIFY_WORKERS", 2),
		NotifyWebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),
	}
	if cfg.TriageLow > cfg.TriageHigh {
		return cfg, fmt.Errorf("TRIAGE_LOW_WATERMARK (%v) exceeds TRIAGE_HIGH_WATERMARK (%v)", cfg.TriageLow, cfg.TriageHigh)
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
