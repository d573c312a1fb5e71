package ingest

import (
	"fmt"
	"strings"
	"time"

	"factline/internal/domain"
)

// InboundMessage is the shape delivered by the messaging webhook before
// normalization.
type InboundMessage struct {
	From     string
	Type     string // text | image | audio | anything else
	Text     string
	Caption  string
	MediaRef string
}

// Normalize flattens the heterogeneous webhook payload shapes into a single
// Submission. Unsupported media types degrade to a placeholder tag rather
// than failing the whole payload.
func Normalize(msg InboundMessage, channel domain.Channel, receivedAt time.Time) domain.Submission {
	sub := domain.Submission{
		Channel:    channel,
		Sender:     strings.TrimSpace(msg.From),
		MediaRef:   msg.MediaRef,
		ReceivedAt: receivedAt,
	}
	switch msg.Type {
	case "text":
		sub.Text = msg.Text
	case "image":
		if msg.Caption != "" {
			sub.Text = msg.Caption
		} else {
			sub.Text = "[image]"
		}
	case "audio":
		sub.Text = "[audio]"
	default:
		sub.Text = fmt.Sprintf("[unsupported:%s]", msg.Type)
	}
	return sub
}
