package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := strconv.ParseUint(r.URL.Query().Get("user"), 10, 32)
		hub.ServeWS(w, r, uint(uid))
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, userID int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+strconv.Itoa(userID), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastToUserReachesOnlyThatUser(t *testing.T) {
	hub, url := startHub(t)

	alice := dial(t, url, 1)
	bob := dial(t, url, 2)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.BroadcastToUser(1, Message{Type: "notification", Data: map[string]string{"title": "Graded"}})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := alice.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "notification", got.Type)
	assert.Equal(t, "Graded", got.Data["title"])

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url, 7)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub, url := startHub(t)

	a := dial(t, url, 1)
	b := dial(t, url, 2)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(Message{Type: "announcement", Data: "hello"})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(raw), "announcement")
	}
}
