// Package notify holds the delivery-channel senders. Delivery is an external
// collaborator: the pipeline hands off recipient + message and never depends
// on how delivery succeeds or fails.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"factline/internal/ports"
)

// WebhookSender POSTs outbound messages as JSON to a delivery gateway
// (messaging/SMS/email bridge). Transient failures are retried by the client.
type WebhookSender struct {
	url    string
	client *retryablehttp.Client
}

func NewWebhookSender(url string) *WebhookSender {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &WebhookSender{url: url, client: client}
}

func (s *WebhookSender) Send(ctx context.Context, msg ports.OutboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delivery gateway returned %s", resp.Status)
	}
	return nil
}

// MemorySender stores deliveries in memory for inspection in tests and for
// local runs without a delivery gateway.
type MemorySender struct {
	mu         sync.Mutex
	deliveries []ports.OutboundMessage
}

func NewMemorySender() *MemorySender { return &MemorySender{} }

func (m *MemorySender) Send(ctx context.Context, msg ports.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, msg)
	return nil
}

// Deliveries returns a copy of deliveries seen so far.
func (m *MemorySender) Deliveries() []ports.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.OutboundMessage, len(m.deliveries))
	copy(out, m.deliveries)
	return out
}
