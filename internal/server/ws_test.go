package server

import (
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/memoraos/neuralmap/internal/engine"
	"golang.org/x/time/rate"
)

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]json.RawMessage, []byte) bool) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(msg, &fields); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if match(fields, msg) {
			return msg
		}
	}
}

func TestWebSocketStreamsFrames(t *testing.T) {
	env := newTestEnv(t, stubSource{samplePayload()})
	conn := dialWS(t, env)

	msg := readUntil(t, conn, func(f map[string]json.RawMessage, _ []byte) bool {
		_, ok := f["seq"]
		return ok
	})
	first := decodeFrame(t, msg)

	if err := conn.WriteJSON(engine.Event{Type: engine.EventZoomIn}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readUntil(t, conn, func(_ map[string]json.RawMessage, raw []byte) bool {
		var f engine.Frame
		return json.Unmarshal(raw, &f) == nil && f.Seq > first.Seq && f.Transform.Zoom > 1
	})
	f := decodeFrame(t, msg)
	if math.Abs(f.Transform.Zoom-1.2) > 1e-9 {
		t.Errorf("zoom = %v, want 1.2", f.Transform.Zoom)
	}
}

func TestWebSocketReportsInvalidEvents(t *testing.T) {
	env := newTestEnv(t, stubSource{samplePayload()})
	conn := dialWS(t, env)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, conn, func(f map[string]json.RawMessage, _ []byte) bool {
		_, ok := f["error"]
		return ok
	})
	if !strings.Contains(string(msg), "invalid event") {
		t.Errorf("error message = %s", msg)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, stubSource{samplePayload()}, "http://localhost:3000")
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	header := map[string][]string{"Origin": {"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("expected dial from foreign origin to fail")
	}
}

func TestThrottledMoveDeliveredBeforeRelease(t *testing.T) {
	// One move per bucket fill that never refills.
	c := &wsClient{moves: rate.NewLimiter(0, 1)}
	move := func(x float64) engine.Event {
		return engine.Event{Type: engine.EventPointerMove, X: x, Y: x}
	}

	if got := c.admit(move(1)); len(got) != 1 || got[0].X != 1 {
		t.Fatalf("first move = %+v, want it admitted", got)
	}
	if got := c.admit(move(2)); len(got) != 0 {
		t.Fatalf("over-rate move admitted: %+v", got)
	}
	if got := c.admit(move(3)); len(got) != 0 {
		t.Fatalf("over-rate move admitted: %+v", got)
	}

	got := c.admit(engine.Event{Type: engine.EventPointerUp})
	if len(got) != 2 {
		t.Fatalf("admit(pointer_up) = %+v, want held move then pointer_up", got)
	}
	if got[0].Type != engine.EventPointerMove || got[0].X != 3 {
		t.Errorf("flushed move = %+v, want the last one (x=3)", got[0])
	}
	if got[1].Type != engine.EventPointerUp {
		t.Errorf("second event = %v, want pointer_up", got[1].Type)
	}

	if got := c.admit(engine.Event{Type: engine.EventZoomIn}); len(got) != 1 {
		t.Errorf("held move delivered twice: %+v", got)
	}
}
