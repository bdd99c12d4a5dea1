package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/memoraos/neuralmap/internal/engine"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = maxEventBytes

	// Pointer moves beyond this rate are coalesced: the newest held move is
	// delivered ahead of the next event let through, so a drag still ends
	// where the pointer was released.
	moveRate  = 120
	moveBurst = 30
)

// wsClient streams frames to one renderer and feeds its events back into
// the scene.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	scene  *engine.Scene
	moves  *rate.Limiter
	held   *engine.Event
	errs   chan []byte
	logger *zap.Logger
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.New().String()
	c := &wsClient{
		id:     id,
		conn:   conn,
		scene:  s.scene,
		moves:  rate.NewLimiter(rate.Limit(moveRate), moveBurst),
		errs:   make(chan []byte, 8),
		logger: s.log.With(zap.String("connectionID", id)),
	}
	c.logger.Info("renderer connected", zap.String("remote", r.RemoteAddr))

	frames, cancel := s.scene.Subscribe()
	go c.writePump(frames)
	c.readPump(r)
	cancel()
}

// readPump applies events from the connection until it closes. It runs on
// the handler goroutine so the request context stays live.
func (c *wsClient) readPump(r *http.Request) {
	defer func() {
		c.conn.Close()
		c.logger.Info("renderer disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Warn("binary messages not supported")
			continue
		}

		var ev engine.Event
		if err := json.Unmarshal(bytes.TrimSpace(message), &ev); err != nil {
			c.reportError("invalid json")
			continue
		}
		// The resulting frames reach this client through its subscription.
		for _, next := range c.admit(ev) {
			if _, err := c.scene.Dispatch(r.Context(), next); err != nil {
				c.reportError(err.Error())
				if sceneStatus(err) == http.StatusServiceUnavailable {
					return
				}
			}
		}
	}
}

// admit returns the events to dispatch for ev. An over-rate pointer move is
// held back instead; the held move goes out first with whatever is admitted
// next.
func (c *wsClient) admit(ev engine.Event) []engine.Event {
	if ev.Type == engine.EventPointerMove {
		if !c.moves.Allow() {
			c.held = &ev
			return nil
		}
		c.held = nil
		return []engine.Event{ev}
	}
	if c.held == nil {
		return []engine.Event{ev}
	}
	out := []engine.Event{*c.held, ev}
	c.held = nil
	return out
}

func (c *wsClient) reportError(msg string) {
	b, _ := json.Marshal(map[string]string{"error": msg})
	select {
	case c.errs <- b:
	default:
		c.logger.Debug("dropping error report", zap.String("error", msg))
	}
}

// writePump is the connection's only writer.
func (c *wsClient) writePump(frames <-chan engine.Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-frames:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "scene stopped"))
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				c.logger.Debug("write frame failed", zap.Error(err))
				return
			}

		case msg := <-c.errs:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}
