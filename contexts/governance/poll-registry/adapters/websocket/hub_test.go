package websocketadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialLive(t *testing.T, hub *Hub, snapshot func() ([]byte, error)) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeLive(w, r, "lunch", snapshot)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(payload)
}

func waitForClients(t *testing.T, hub *Hub, pollID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients(pollID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients on %s, got %d", want, pollID, hub.Clients(pollID))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServeLiveSendsSnapshotThenBroadcasts(t *testing.T) {
	hub := NewHub(nil)
	conn := dialLive(t, hub, func() ([]byte, error) {
		return []byte(`{"total_votes":0}`), nil
	})

	if got := readMessage(t, conn); got != `{"total_votes":0}` {
		t.Fatalf("unexpected snapshot %q", got)
	}
	waitForClients(t, hub, "lunch", 1)

	hub.Broadcast("lunch", []byte(`{"total_votes":1}`))
	hub.Broadcast("dinner", []byte(`{"total_votes":9}`))
	if got := readMessage(t, conn); got != `{"total_votes":1}` {
		t.Fatalf("unexpected broadcast %q", got)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	conn := dialLive(t, hub, nil)
	waitForClients(t, hub, "lunch", 1)

	_ = conn.Close()
	waitForClients(t, hub, "lunch", 0)
}

func TestCloseShutsDownClients(t *testing.T) {
	hub := NewHub(nil)
	conn := dialLive(t, hub, nil)
	waitForClients(t, hub, "lunch", 1)

	hub.Close()
	if hub.Clients("lunch") != 0 {
		t.Fatalf("expected no clients after close")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection to be closed")
	}
}

func TestSnapshotIsTakenAfterRegistration(t *testing.T) {
	hub := NewHub(nil)
	registered := make(chan int, 1)
	conn := dialLive(t, hub, func() ([]byte, error) {
		registered <- len(hub.rooms["lunch"])
		// A vote landing while the snapshot is read must still reach the
		// client, after the snapshot.
		go hub.Broadcast("lunch", []byte(`{"total_votes":1}`))
		return []byte(`{"total_votes":0}`), nil
	})

	if got := readMessage(t, conn); got != `{"total_votes":0}` {
		t.Fatalf("expected snapshot first, got %q", got)
	}
	if got := readMessage(t, conn); got != `{"total_votes":1}` {
		t.Fatalf("broadcast during snapshot was lost, got %q", got)
	}
	if n := <-registered; n != 1 {
		t.Fatalf("snapshot ran before the client was registered (%d clients)", n)
	}
}

func TestSnapshotFailureKeepsStreaming(t *testing.T) {
	hub := NewHub(nil)
	conn := dialLive(t, hub, func() ([]byte, error) {
		return nil, errors.New("store unavailable")
	})
	waitForClients(t, hub, "lunch", 1)

	hub.Broadcast("lunch", []byte(`{"total_votes":2}`))
	if got := readMessage(t, conn); got != `{"total_votes":2}` {
		t.Fatalf("unexpected broadcast %q", got)
	}
}
