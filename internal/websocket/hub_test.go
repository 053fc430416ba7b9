package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediashelf/mediashelf/internal/library"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_SendToSessionRoutesBySession(t *testing.T) {
	hub, url := startHub(t)

	a := dial(t, url+"?session=alpha")
	b := dial(t, url+"?session=beta")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.SessionClientCount("alpha"))

	require.NoError(t, hub.SendToSession("alpha", "library:changed", map[string]string{"reason": "navigate"}))
	require.NoError(t, hub.Broadcast("logs:entry", "hello"))

	msg := readMessage(t, a)
	assert.Equal(t, "library:changed", msg.Type)
	assert.Equal(t, "logs:entry", readMessage(t, a).Type)

	assert.Equal(t, "logs:entry", readMessage(t, b).Type, "beta only sees the broadcast")
}

func TestHub_RejectsMissingSession(t *testing.T) {
	_, url := startHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHub_IntentRoundTrip(t *testing.T) {
	hub, url := startHub(t)
	hub.SetIntentHandler(func(sessionID string, payload json.RawMessage) (interface{}, error) {
		var in struct {
			Intent string `json:"intent"`
		}
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		if in.Intent == "bad" {
			return nil, errors.New("unknown intent")
		}
		return map[string]string{"session": sessionID, "intent": in.Intent}, nil
	})

	conn := dial(t, url+"?session=s1")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    TypeIntent,
		"payload": map[string]string{"intent": "search"},
	}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeIntentResult, msg.Type)
	assert.Equal(t, map[string]interface{}{"session": "s1", "intent": "search"}, msg.Payload)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    TypeIntent,
		"payload": map[string]string{"intent": "bad"},
	}))
	msg = readMessage(t, conn)
	assert.Equal(t, TypeIntentError, msg.Type)
}

// readIntentReplies reads frames until n intent replies arrive, skipping pushes.
func readIntentReplies(t *testing.T, conn *websocket.Conn, n int) []json.RawMessage {
	t.Helper()
	var replies []json.RawMessage
	for len(replies) < n {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		switch frame.Type {
		case TypeIntentResult:
			replies = append(replies, frame.Payload)
		case TypeIntentError:
			t.Fatalf("intent failed: %s", frame.Payload)
		}
	}
	return replies
}

func TestHub_IntentsApplyInSendOrder(t *testing.T) {
	hub, url := startHub(t)

	var mu sync.Mutex
	var applied []string
	hub.SetIntentHandler(func(sessionID string, payload json.RawMessage) (interface{}, error) {
		var in struct {
			Intent string `json:"intent"`
		}
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		if in.Intent == "slow" {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		applied = append(applied, in.Intent)
		mu.Unlock()
		return in.Intent, nil
	})

	conn := dial(t, url+"?session=s1")
	for _, name := range []string{"slow", "fast"} {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type":    TypeIntent,
			"payload": map[string]string{"intent": name},
		}))
	}

	replies := readIntentReplies(t, conn, 2)
	assert.JSONEq(t, `"slow"`, string(replies[0]))
	assert.JSONEq(t, `"fast"`, string(replies[1]))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"slow", "fast"}, applied)
}

func TestHub_NavigateThenCreateLandsInFolder(t *testing.T) {
	hub, url := startHub(t)

	svc := library.NewService(library.DefaultConfig(), []library.Entry{
		{ID: "f1", Name: "Cakes", Kind: library.KindFolder},
	}, hub, nil, zerolog.Nop())
	t.Cleanup(svc.Close)
	hub.SetIntentHandler(func(sessionID string, payload json.RawMessage) (interface{}, error) {
		var in library.Intent
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		return svc.Dispatch(context.Background(), sessionID, in)
	})

	conn := dial(t, url+"?session=s1")
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    TypeIntent,
		"payload": map[string]string{"intent": library.IntentNavigateToFolder, "id": "f1"},
	}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    TypeIntent,
		"payload": map[string]string{"intent": library.IntentCreateFolder, "name": "Tiers"},
	}))

	replies := readIntentReplies(t, conn, 2)
	var created library.IntentResult
	require.NoError(t, json.Unmarshal(replies[1], &created))
	require.NotNil(t, created.Entry)
	assert.Equal(t, "Tiers", created.Entry.Name)
	assert.Equal(t, library.ID("f1"), created.Entry.ParentID)
	assert.Equal(t, library.ID("f1"), created.View.CurrentFolderID)
}

func TestHub_CustomSessionResolver(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.SetSessionResolver(func(c echo.Context) string { return c.Request().Header.Get("X-Session-ID") })
	go hub.Run()

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	header := map[string][]string{"X-Session-ID": {"from-header"}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.SessionClientCount("from-header") == 1 }, time.Second, 5*time.Millisecond)
}
