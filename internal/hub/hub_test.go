package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, origins []string) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(origins)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	h, srv := startHub(t, nil)

	a, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer a.Close()
	b, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return h.Clients() == 2 }, time.Second, 10*time.Millisecond)

	h.Publish("sensor-update", map[string]any{"id": "1", "fire": true})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Event string         `json:"event"`
			Data  map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "sensor-update", msg.Event)
		assert.Equal(t, "1", msg.Data["id"])
		assert.Equal(t, true, msg.Data["fire"])
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h, srv := startHub(t, nil)

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, srv := startHub(t, []string{"http://dashboard.local"})

	_, resp, err := dial(t, srv, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dial(t, srv, http.Header{"Origin": []string{"http://dashboard.local"}})
	require.NoError(t, err)
	conn.Close()
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := New(nil) // not running, nothing drains the queue

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			h.Publish("rooms-update", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Len(t, h.broadcast, broadcastBuffer)
}
