package ports

import "context"

// OutboundMessage is a recipient plus rendered body handed to a delivery
// channel. The state machine never depends on delivery succeeding.
type OutboundMessage struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

// Sender delivers a single outbound message over one channel.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// Dispatcher accepts outbound messages for fire-and-forget delivery.
type Dispatcher interface {
	Enqueue(msg OutboundMessage)
}
