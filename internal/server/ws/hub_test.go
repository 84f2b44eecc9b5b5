package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chanBus is an in-process stand-in for the Redis signal bus.
type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return b.ch, nil
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubBroadcastsBusEvents(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	hub := NewHub(bus, "market.events", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// First frame is the status welcome.
	var welcome struct {
		Type string `json:"type"`
	}
	if _, msg, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read welcome: %v", err)
	} else if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != "status" {
		t.Fatalf("welcome = %s (err %v), want type status", msg, err)
	}

	// The client is registered once the welcome arrived, so a bus event
	// must now reach it.
	bus.ch <- []byte(`{"type":"result.declared","market_id":"MKT-1"}`)

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !strings.Contains(string(msg), "MKT-1") {
		t.Errorf("event = %s, want the published payload", msg)
	}
}

func TestHandleWSAfterShutdownClosesConnection(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte)}
	hub := NewHub(bus, "market.events", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	// A connection arriving after the hub stopped must be closed by the
	// server, not parked on the registration channel forever.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("read succeeded, want closed connection")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("read timed out, connection was left open after shutdown")
	}
}
