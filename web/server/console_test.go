package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func receive(t *testing.T, ch <-chan ConsoleMessage) ConsoleMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for console message")
		return ConsoleMessage{}
	}
}

func TestWebLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		args    []interface{}
		message string
		level   string
	}{
		{
			name:    "Info",
			format:  "[Store] saved map %q (%d occluders)\n",
			args:    []interface{}{"arena", 12},
			message: "[Store] saved map \"arena\" (12 occluders)\n",
			level:   "info",
		},
		{
			name:    "SkippedOccluder",
			format:  "[Culling] frame %d: skipping occluder %d: %v",
			args:    []interface{}{12, 3, "degenerate"},
			message: "[Culling] frame 12: skipping occluder 3: degenerate",
			level:   "warning",
		},
		{
			name:    "RejectedOccluder",
			format:  "[Registry] rejected %s occluder: %v",
			args:    []interface{}{"polygon", "too few corners"},
			message: "[Registry] rejected polygon occluder: too few corners",
			level:   "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan ConsoleMessage, 1)
			NewWebLogger("culling", ch).Printf(tt.format, tt.args...)

			msg := receive(t, ch)
			if msg.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, msg.Message)
			}
			if msg.Level != tt.level {
				t.Errorf("Expected level %q, got %q", tt.level, msg.Level)
			}
			if msg.Source != "culling" {
				t.Errorf("Expected source 'culling', got %q", msg.Source)
			}
			if time.Since(msg.Timestamp) > time.Second {
				t.Errorf("Timestamp seems too old: %v", msg.Timestamp)
			}
		})
	}
}

func TestWebLogger_DoesNotBlock(t *testing.T) {
	ch := make(chan ConsoleMessage, 1)
	logger := NewWebLogger("server", ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 5 {
			logger.Printf("message %d", i)
		}
		NewWebLogger("server", nil).Printf("no console attached")
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Logger blocked on a full channel")
	}
	if msg := receive(t, ch); msg.Message != "message 0" {
		t.Errorf("Expected the first message to be kept, got %q", msg.Message)
	}
}

func TestForwardConsole(t *testing.T) {
	s := newTestServer(t, "corridor", false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)
	go s.forwardConsole(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Expected websocket to connect, got %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Skip the map sent on connect
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("Expected map message, got %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for client registration")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.logger.Printf("[Server] hello %s", "console")

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Expected console message, got %v", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var msg ConsoleMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Expected JSON console message, got %v", err)
		}
		if msg.Message == "[Server] hello console" {
			if msg.Source != "server" {
				t.Errorf("Expected source 'server', got %q", msg.Source)
			}
			return
		}
	}
}
