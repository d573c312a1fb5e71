// Package dispatch decouples outbound notification delivery from the state
// machine. Publishing a record only enqueues a message here; a delivery
// outage can never fail or stall a transition.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"factline/internal/metrics"
	"factline/internal/ports"
)

type Dispatcher struct {
	sender ports.Sender
	log    *slog.Logger
	ch     chan ports.OutboundMessage
	wg     sync.WaitGroup
}

func New(sender ports.Sender, log *slog.Logger, buffer int) *Dispatcher {
	if buffer < 1 {
		buffer = 64
	}
	return &Dispatcher{sender: sender, log: log, ch: make(chan ports.OutboundMessage, buffer)}
}

// Enqueue accepts a message for delivery without blocking. If the buffer is
// full the message is dropped with a warning; the state machine has already
// moved on.
func (d *Dispatcher) Enqueue(msg ports.OutboundMessage) {
	select {
	case d.ch <- msg:
	default:
		d.log.Warn("notification buffer full, dropping message",
			"channel", msg.Channel, "recipient", msg.Recipient)
		metrics.NotificationsSent.WithLabelValues(msg.Channel, "dropped").Inc()
	}
}

// Run starts worker goroutines that drain the buffer until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-d.ch:
					if err := d.sender.Send(ctx, msg); err != nil {
						d.log.Warn("notification delivery failed",
							"channel", msg.Channel, "recipient", msg.Recipient, "err", err)
						metrics.NotificationsSent.WithLabelValues(msg.Channel, "error").Inc()
						continue
					}
					metrics.NotificationsSent.WithLabelValues(msg.Channel, "ok").Inc()
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited after cancellation.
func (d *Dispatcher) Wait() { d.wg.Wait() }
