package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsSendBuffer   = 256
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins - configure properly in production
	},
}

// WSMessage is a generic WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`    // Message type: "value", "evaluate", "subscribe", "ping"
	ID      string          `json:"id"`      // Request ID for correlating responses
	Payload json.RawMessage `json:"payload"` // Type-specific payload
}

// WSResponse is a generic WebSocket response.
type WSResponse struct {
	Type    string `json:"type"`              // Response type: "result", "progress", "error", "pong"
	ID      string `json:"id,omitempty"`      // Request ID
	Payload any    `json:"payload,omitempty"` // Response data
	Error   string `json:"error,omitempty"`   // Error message if any
	Code    string `json:"code,omitempty"`    // Error code, as in ErrorResponse
}

// wsClient is one connected WebSocket client. Both pumps stop the client
// when they fail, so senders never block on a dead connection.
type wsClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	send     chan WSResponse
	done     chan struct{}
	stopOnce sync.Once

	mu          sync.Mutex
	unsubscribe func()
}

// WebSocket handles GET /api/ws: table queries plus the progress stream of
// the running analysis.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{
		conn:     conn,
		handlers: h,
		send:     make(chan WSResponse, wsSendBuffer),
		done:     make(chan struct{}),
	}
	go c.writePump()
	c.readPump()
}

func (c *wsClient) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) reply(resp WSResponse) {
	select {
	case c.send <- resp:
	case <-c.done:
	}
}

func (c *wsClient) writePump() {
	defer c.stop()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.stop()
		c.mu.Lock()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.mu.Unlock()
	}()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

func (c *wsClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "value":
		c.handleValue(msg)
	case "evaluate":
		c.handleEvaluate(msg)
	case "subscribe":
		c.handleSubscribe(msg)
	case "ping":
		c.reply(WSResponse{Type: "pong", ID: msg.ID})
	default:
		c.reply(WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type", Code: "UNKNOWN_TYPE"})
	}
}

func (c *wsClient) fail(id string, err error) {
	ae := classify(err)
	c.reply(WSResponse{Type: "error", ID: id, Error: ae.Error(), Code: ae.code})
}

func (c *wsClient) handleValue(msg WSMessage) {
	var req ValueRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.reply(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"})
		return
	}
	pool := c.handlers.pool
	if !pool.TryAcquireLookup() {
		c.reply(WSResponse{Type: "error", ID: msg.ID, Error: "server busy", Code: "SERVER_BUSY"})
		return
	}
	defer pool.ReleaseLookup()

	resp, err := c.handlers.lookup(req.Code)
	if err != nil {
		c.fail(msg.ID, err)
		return
	}
	c.reply(WSResponse{Type: "result", ID: msg.ID, Payload: resp})
}

func (c *wsClient) handleEvaluate(msg WSMessage) {
	var req EvaluateRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.reply(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"})
		return
	}
	pool := c.handlers.pool
	if !pool.TryAcquireEval() {
		c.reply(WSResponse{Type: "error", ID: msg.ID, Error: "server busy", Code: "SERVER_BUSY"})
		return
	}
	defer pool.ReleaseEval()

	resp, err := c.handlers.evaluate(req.Board)
	if err != nil {
		c.fail(msg.ID, err)
		return
	}
	c.reply(WSResponse{Type: "result", ID: msg.ID, Payload: resp})
}

// handleSubscribe replays the finished classes of the current run, then
// forwards live events until the client goes away.
func (c *wsClient) handleSubscribe(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.reply(WSResponse{Type: "error", ID: msg.ID, Error: "already subscribed", Code: "SUBSCRIBED"})
		return
	}

	snapshot, events, cancel := c.handlers.hub.SubscribeWithSnapshot(wsSendBuffer)
	c.unsubscribe = cancel
	for _, ev := range snapshot {
		c.reply(WSResponse{Type: "progress", ID: msg.ID, Payload: ev})
	}

	go func() {
		defer cancel()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				c.reply(WSResponse{Type: "progress", ID: msg.ID, Payload: ev})
			case <-c.done:
				return
			}
		}
	}()
}
