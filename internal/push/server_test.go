package push

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"terminal-core/internal/events"
)

func dialTest(t *testing.T) (*events.Bus, *websocket.Conn) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	s := NewServer(bus, "127.0.0.1:0")
	srv := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return bus, conn
}

func TestPushForwardsEvents(t *testing.T) {
	bus, conn := dialTest(t)

	// The subscription is registered during the upgrade handshake; give the
	// handler a beat before publishing.
	time.Sleep(20 * time.Millisecond)
	bus.Publish(events.New(events.TypeConnected, events.ConnectionPayload{Front: events.FrontMarket}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var got struct {
		Type    string `json:"type"`
		Payload struct {
			Front string `json:"front"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Type != string(events.TypeConnected) || got.Payload.Front != string(events.FrontMarket) {
		t.Fatalf("event = %+v", got)
	}
}

func TestPushClosesWithBus(t *testing.T) {
	bus, conn := dialTest(t)

	time.Sleep(20 * time.Millisecond)
	bus.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read error = %v, want normal closure", err)
			}
			return
		}
	}
}
