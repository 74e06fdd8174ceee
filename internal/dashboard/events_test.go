package dashboard

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"symdir/config"
	"symdir/internal/cache"
	"symdir/logger"
)

func dialEvents(t *testing.T, srv *Server, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.events.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) snapshotEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev snapshotEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestEventsStreamRebuildOutcomes(t *testing.T) {
	srv, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	conn := dialEvents(t, srv, ts.URL)

	srv.Notify(cache.RebuildEvent{Snapshot: testSnapshot(), Duration: 1500 * time.Millisecond})
	ev := readEvent(t, conn)
	if ev.Type != "snapshot" || ev.SnapshotID != "snap-1" || ev.Rows != 4 || ev.DurationMs != 1500 {
		t.Fatalf("unexpected success event: %+v", ev)
	}
	if ev.RetrievedAt != "2024-05-01T12:00:00Z" || ev.Error != "" {
		t.Fatalf("unexpected success event: %+v", ev)
	}

	srv.Notify(cache.RebuildEvent{Err: errors.New("fetch open: connection refused"), Duration: time.Second})
	ev = readEvent(t, conn)
	if ev.Type != "rebuild_failed" || ev.Error != "fetch open: connection refused" || ev.SnapshotID != "" {
		t.Fatalf("unexpected failure event: %+v", ev)
	}
}

func TestEventsHubCloseDisconnectsClients(t *testing.T) {
	srv, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	conn := dialEvents(t, srv, ts.URL)

	srv.events.close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
		t.Fatalf("expected close frame, got %v", err)
	}
	if srv.events.count() != 0 {
		t.Fatalf("hub still holds %d clients", srv.events.count())
	}
}

func TestEventsHubDropsSlowClient(t *testing.T) {
	hub := newEventHub(logger.Logger())
	slow := &eventClient{send: make(chan []byte, eventBuffer)}
	fast := &eventClient{send: make(chan []byte, eventBuffer+2)}
	hub.clients[slow] = struct{}{}
	hub.clients[fast] = struct{}{}

	for i := 0; i <= eventBuffer; i++ {
		hub.broadcast(snapshotEvent{Type: "snapshot", SnapshotID: "s"})
	}

	if hub.count() != 1 {
		t.Fatalf("hub holds %d clients, want only the fast one", hub.count())
	}
	if _, ok := hub.clients[fast]; !ok {
		t.Fatal("fast client dropped")
	}
	n := 0
	for range slow.send {
		n++
	}
	if n != eventBuffer {
		t.Fatalf("slow client received %d buffered events, want %d", n, eventBuffer)
	}

	// already-dropped clients must not be closed again
	hub.remove(slow)
	hub.close()
	hub.remove(fast)
	if hub.count() != 0 {
		t.Fatalf("hub holds %d clients after close", hub.count())
	}
}

func TestNewSnapshotEvent(t *testing.T) {
	ok := newSnapshotEvent(cache.RebuildEvent{Snapshot: testSnapshot(), Duration: 20 * time.Millisecond})
	if ok.Type != "snapshot" || ok.Rows != 4 || ok.DurationMs != 20 {
		t.Fatalf("unexpected event: %+v", ok)
	}
	failed := newSnapshotEvent(cache.RebuildEvent{Snapshot: testSnapshot(), Err: errors.New("boom")})
	if failed.Type != "rebuild_failed" || failed.Error != "boom" || failed.Rows != 0 {
		t.Fatalf("failure event carries snapshot data: %+v", failed)
	}
	empty := newSnapshotEvent(cache.RebuildEvent{})
	if empty.Type != "snapshot" || empty.SnapshotID != "" {
		t.Fatalf("unexpected empty event: %+v", empty)
	}
}
