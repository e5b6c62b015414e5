package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, buffer int) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := newHub(buffer)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "канал клиента закрыт")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}
	return Envelope{}
}

func TestHub_PublishFansOutToAllClients(t *testing.T) {
	hub, _ := startHub(t, 8)

	user := NewClient(nil, hub, uuid.New(), "user")
	admin := NewClient(nil, hub, uuid.New(), "admin")
	hub.Register(user)
	hub.Register(admin)

	hub.Publish("new_issue", map[string]string{"issue_id": "JDR-20240115-AB12"})

	for _, c := range []*Client{user, admin} {
		env := receive(t, c)
		assert.Equal(t, "new_issue", env.Type)
		data, ok := env.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "JDR-20240115-AB12", data["issue_id"])
	}
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, _ := startHub(t, 8)

	c := NewClient(nil, hub, uuid.New(), "user")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("канал не закрыт")
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t, 64)

	slow := NewClient(nil, hub, uuid.New(), "user")
	hub.Register(slow)

	for i := 0; i < sendBuffer+1; i++ {
		hub.Publish("status_updated", i)
	}

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_PublishDropsWhenQueueFull(t *testing.T) {
	hub := newHub(1)

	hub.Publish("new_issue", 1)
	hub.Publish("new_issue", 2)

	assert.Equal(t, uint64(1), hub.DroppedEvents())
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t, 8)

	c := NewClient(nil, hub, uuid.New(), "admin")
	hub.Register(c)
	cancel()

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("канал не закрыт после остановки")
	}

	late := NewClient(nil, hub, uuid.New(), "user")
	hub.Register(late)
	_, ok := <-late.send
	assert.False(t, ok)
}

func TestClient_ReceivesEventsOverWebSocket(t *testing.T) {
	hub, _ := startHub(t, 8)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, uuid.New(), "user")
		hub.Register(client)
		client.Run(r.Context())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("issue_deleted", map[string]string{"issue_id": "JDR-20240115-ZZ99"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "issue_deleted", env.Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
