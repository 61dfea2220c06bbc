package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/docrevise/core/patch"
)

func TestEventFor(t *testing.T) {
	tests := []struct {
		name string
		res  patch.Result
		err  error
		want string
	}{
		{"applied", patch.Result{Replaced: true, Strategy: patch.StrategySplice}, nil, EventApplied},
		{"skipped", patch.Result{Skipped: patch.SkipSubstringNotFound}, nil, EventSkipped},
		{"undone", patch.Result{Replaced: true, Strategy: patch.StrategyUndo}, nil, EventUndone},
		{"failed", patch.Result{Position: -1}, errors.New("boom"), EventFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := eventFor("span", "00000001", tt.res, tt.err)
			if ev.Type != tt.want {
				t.Errorf("Type = %q, want %q", ev.Type, tt.want)
			}
			if (ev.Error != "") != (tt.err != nil) {
				t.Errorf("Error = %q", ev.Error)
			}
		})
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketPatchEvents(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, s.Hub(), 1)

	body := strings.NewReader(`{"paraID":"00000002","original":"cat","replacement":"dog"}`)
	resp, err := http.Post(ts.URL+"/replace/span", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	resp, err = http.Post(ts.URL+"/undo", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	for _, want := range []string{EventApplied, EventUndone} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var ev PatchEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad event %s: %v", data, err)
		}
		if ev.Type != want || ev.Timestamp == "" || ev.Result == nil {
			t.Errorf("event = %+v, want type %s", ev, want)
		}
		if want == EventApplied && (ev.ParaID != "00000002" || ev.Operation != "span") {
			t.Errorf("applied event = %+v", ev)
		}
	}
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	s, _ := newTestServer(t, Config{AllowedOrigins: []string{"https://addin.example.com"}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatal("dial from a disallowed origin succeeded")
	}

	header.Set("Origin", "https://addin.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial from an allowed origin failed: %v", err)
	}
	conn.Close()
}

func TestHubStopClosesClients(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitForClients(t, s.Hub(), 1)

	s.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after Stop")
	}
	s.Hub().Broadcast(PatchEvent{Type: EventApplied})
}
