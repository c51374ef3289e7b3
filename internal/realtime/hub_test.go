package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/models"
)

func TestRegisterAndPresence(t *testing.T) {
	hub := NewHub(zap.NewNop())

	assert.False(t, hub.IsAgentConnected("agent-1"))

	first := newClient("agent-1", nil)
	second := newClient("agent-1", nil)
	require.True(t, hub.register(first))
	require.True(t, hub.register(second))

	assert.True(t, hub.IsAgentConnected("agent-1"))
	assert.Equal(t, 2, hub.ConnectionCount("agent-1"))
	assert.False(t, hub.IsAgentConnected("agent-2"))
}

func TestNotificationReachesEveryConnection(t *testing.T) {
	hub := NewHub(zap.NewNop())
	first := newClient("agent-1", nil)
	second := newClient("agent-1", nil)
	require.True(t, hub.register(first))
	require.True(t, hub.register(second))

	notification := &models.Notification{
		ID:          "notif-1",
		RecipientID: "agent-1",
		Type:        models.NotificationForumPost,
		Title:       "New post: Hello",
	}
	assert.True(t, hub.SendNotificationToAgent("agent-1", notification))

	for _, c := range []*client{first, second} {
		select {
		case payload := <-c.send:
			var envelope Envelope
			require.NoError(t, json.Unmarshal(payload, &envelope))
			assert.Equal(t, MessageNewNotification, envelope.Type)
			assert.False(t, envelope.Timestamp.IsZero())
		default:
			t.Fatal("connection did not receive the notification")
		}
	}
}

func TestSendToAbsentAgentReturnsFalse(t *testing.T) {
	hub := NewHub(zap.NewNop())

	delivered := hub.SendNotificationToAgent("agent-1", &models.Notification{ID: "notif-1", RecipientID: "agent-1"})
	assert.False(t, delivered)
}

func TestUnregisterKeepsRemainingConnections(t *testing.T) {
	hub := NewHub(zap.NewNop())
	first := newClient("agent-1", nil)
	second := newClient("agent-1", nil)
	require.True(t, hub.register(first))
	require.True(t, hub.register(second))

	hub.unregister(first)
	assert.True(t, hub.IsAgentConnected("agent-1"))
	assert.Equal(t, 1, hub.ConnectionCount("agent-1"))

	hub.unregister(second)
	assert.False(t, hub.IsAgentConnected("agent-1"))
	assert.False(t, hub.SendNotificationToAgent("agent-1", &models.Notification{ID: "notif-1"}))
}

func TestUnregisterUnknownClientIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop())
	registered := newClient("agent-1", nil)
	require.True(t, hub.register(registered))

	// Unregistering twice must not panic or double-close the send channel.
	hub.unregister(registered)
	hub.unregister(registered)
	hub.unregister(newClient("agent-2", nil))

	assert.False(t, hub.IsAgentConnected("agent-1"))
}

func TestUnreadCountEnvelope(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newClient("agent-1", nil)
	require.True(t, hub.register(c))

	hub.SendUnreadCountUpdate("agent-1", 7)

	select {
	case payload := <-c.send:
		var envelope Envelope
		require.NoError(t, json.Unmarshal(payload, &envelope))
		assert.Equal(t, MessageUnreadCount, envelope.Type)
		data, ok := envelope.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(7), data["count"])
	default:
		t.Fatal("connection did not receive the unread count")
	}
}

func TestSlowConsumerDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newClient("agent-1", nil)
	require.True(t, hub.register(c))

	// Fill the buffer; the extra frames must be dropped, not block.
	for i := 0; i < sendBufferSize+5; i++ {
		hub.SendUnreadCountUpdate("agent-1", int64(i))
	}
	assert.Len(t, c.send, sendBufferSize)
}

func TestCloseRefusesNewRegistrations(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newClient("agent-1", nil)
	require.True(t, hub.register(c))

	hub.Close()

	assert.False(t, hub.IsAgentConnected("agent-1"))
	assert.False(t, hub.register(newClient("agent-2", nil)))

	// The registered client's channel is closed on shutdown.
	_, open := <-c.send
	assert.False(t, open)

	// Closing twice is safe.
	hub.Close()
}
