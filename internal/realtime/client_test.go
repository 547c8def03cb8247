package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/config"
)

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		SendBufferSize: 8,
		ReadLimitBytes: 4096,
		WriteTimeout:   time.Second,
		PingInterval:   time.Minute,
		PongWait:       time.Minute,
	}
}

// dialClient spins an upgraded server-side Client against a real websocket
// connection and returns the dialed peer.
func dialClient(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, nil, testRealtimeConfig(), nil)
		client.Run(r.Context())
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestClientSubscribeReceivesEvents(t *testing.T) {
	hub := NewHub(8, nil, nil)
	conn := dialClient(t, hub)

	topic := models.ClassTopic("c1")
	require.NoError(t, conn.WriteJSON(Command{
		Action:    ActionSubscribe,
		RequestID: "r1",
		Topics:    []string{topic},
	}))

	ack := readMessage(t, conn)
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, "r1", ack.RequestID)

	// The hub may observe the subscription slightly after the ack is queued.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(topic) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(models.Event{
		Topic:   topic,
		Type:    models.EventWaitlistOffer,
		ClassID: "c1",
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, models.EventWaitlistOffer, msg.Event.Type)
}

func TestClientUnknownAction(t *testing.T) {
	hub := NewHub(8, nil, nil)
	conn := dialClient(t, hub)

	require.NoError(t, conn.WriteJSON(Command{Action: "bogus", RequestID: "r1"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	require.NotNil(t, msg.Error)
}

func TestClientMalformedPayload(t *testing.T) {
	hub := NewHub(8, nil, nil)
	conn := dialClient(t, hub)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestClientDisconnectCleansUpSubscriptions(t *testing.T) {
	hub := NewHub(8, nil, nil)
	conn := dialClient(t, hub)

	topic := models.StudentTopic("s1")
	require.NoError(t, conn.WriteJSON(Command{Action: ActionSubscribe, Topics: []string{topic}}))
	readMessage(t, conn)
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(topic) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(topic) == 0
	}, 2*time.Second, 10*time.Millisecond, "subscription must be dropped on disconnect")
}
