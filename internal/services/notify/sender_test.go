package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factline/internal/ports"
)

func TestWebhookSenderPostsJSON(t *testing.T) {
	var got ports.OutboundMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	sender := NewWebhookSender(ts.URL)
	err := sender.Send(context.Background(), ports.OutboundMessage{
		Channel:   "sms",
		Recipient: "+23276000001",
		Body:      "Your claim has been checked: FALSE.",
	})
	require.NoError(t, err)
	assert.Equal(t, "sms", got.Channel)
	assert.Equal(t, "+23276000001", got.Recipient)
}

func TestWebhookSenderSurfacesServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	sender := NewWebhookSender(ts.URL)
	err := sender.Send(context.Background(), ports.OutboundMessage{Body: "x"})
	assert.Error(t, err)
}

func TestMemorySenderRecordsDeliveries(t *testing.T) {
	sender := NewMemorySender()
	require.NoError(t, sender.Send(context.Background(), ports.OutboundMessage{Body: "a"}))
	require.NoError(t, sender.Send(context.Background(), ports.OutboundMessage{Body: "b"}))
	assert.Len(t, sender.Deliveries(), 2)
}
