// Package bridge connects the fetch pipeline to the companion browser agent.
// The agent dials in over a websocket and answers request envelopes on
// behalf of the browser: active tab lookup, content-script messaging, page
// world fetches and cookie reads.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/tidwall/gjson"
)

const (
	// Time allowed to write a message to the agent
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the agent
	pongWait = 60 * time.Second

	// Send pings to the agent with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// League payloads are large; cap at 32 MiB
	maxMessageSize = 32 << 20

	sendBufferSize = 64

	DefaultCallTimeout = 30 * time.Second
)

var (
	ErrNoAgent   = errors.New("no browser agent connected")
	ErrAgentGone = errors.New("browser agent disconnected")
)

// Request is sent to the agent. Response carries the same ID back.
type Request struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Params interface{} `json:"params,omitempty"`
}

type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// AgentError is a request the agent received but could not carry out.
type AgentError struct {
	Type    string
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.Type, e.Message)
}

// Hub holds the connection to the single active agent. A new connection
// replaces the previous one.
type Hub struct {
	CallTimeout time.Duration

	upgrader websocket.Upgrader

	mu    sync.Mutex
	agent *agentConn
	ready chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		CallTimeout: DefaultCallTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowedOrigin,
		},
		ready: make(chan struct{}),
	}
}

// allowedOrigin admits extension pages and non-browser clients, never web pages.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" ||
		strings.HasPrefix(origin, "chrome-extension://") ||
		strings.HasPrefix(origin, "moz-extension://")
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Log.Warnf("Agent websocket upgrade failed: %v", err)
		return
	}

	a := newAgentConn(uuid.NewString(), conn)
	h.attach(a)
	utils.Log.Infof("Browser agent %s connected from %s", a.id, r.RemoteAddr)

	go a.writePump()
	a.readPump()

	h.detach(a)
	utils.Log.Infof("Browser agent %s disconnected", a.id)
}

func (h *Hub) attach(a *agentConn) {
	h.mu.Lock()
	old := h.agent
	h.agent = a
	if old == nil {
		close(h.ready)
	}
	h.mu.Unlock()

	if old != nil {
		utils.Log.Debugf("Replacing browser agent %s", old.id)
		old.shutdown()
	}
}

func (h *Hub) detach(a *agentConn) {
	a.shutdown()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.agent == a {
		h.agent = nil
		h.ready = make(chan struct{})
	}
}

// Connected reports whether an agent is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agent != nil
}

// WaitForAgent blocks until an agent is attached or ctx is done.
func (h *Hub) WaitForAgent(ctx context.Context) error {
	for {
		h.mu.Lock()
		if h.agent != nil {
			h.mu.Unlock()
			return nil
		}
		ready := h.ready
		h.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return fmt.Errorf("waiting for browser agent: %w", ctx.Err())
		}
	}
}

func (h *Hub) current() *agentConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agent
}

// call sends one request and decodes the result into out.
func (h *Hub) call(ctx context.Context, typ string, params interface{}, out interface{}) error {
	a := h.current()
	if a == nil {
		return ErrNoAgent
	}

	timeout := h.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := Request{ID: uuid.NewString(), Type: typ, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", typ, err)
	}

	reply := a.register(req.ID)
	defer a.unregister(req.ID)

	select {
	case a.send <- data:
	case <-a.closed:
		return ErrAgentGone
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", typ, ctx.Err())
	}

	select {
	case resp := <-reply:
		if !resp.OK {
			return &AgentError{Type: typ, Message: resp.Error}
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", typ, err)
		}
		return nil
	case <-a.closed:
		return ErrAgentGone
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", typ, ctx.Err())
	}
}

type agentConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	pending map[string]chan Response

	closeOnce sync.Once
	closed    chan struct{}
}

func newAgentConn(id string, conn *websocket.Conn) *agentConn {
	return &agentConn{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		pending: make(map[string]chan Response),
		closed:  make(chan struct{}),
	}
}

func (a *agentConn) register(id string) chan Response {
	ch := make(chan Response, 1)
	a.mu.Lock()
	a.pending[id] = ch
	a.mu.Unlock()
	return ch
}

func (a *agentConn) unregister(id string) {
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()
}

func (a *agentConn) deliver(data []byte) {
	id := gjson.GetBytes(data, "id").String()
	if id == "" {
		utils.Log.Debugf("Agent %s sent a message without id: %.200s", a.id, data)
		return
	}
	a.mu.Lock()
	ch, ok := a.pending[id]
	a.mu.Unlock()
	if !ok {
		utils.Log.Debugf("Agent %s answered unknown request %s", a.id, id)
		return
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		resp = Response{ID: id, Error: "malformed response: " + err.Error()}
	}
	select {
	case ch <- resp:
	default:
	}
}

// shutdown fails every pending call and closes the socket.
func (a *agentConn) shutdown() {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.conn.Close()
	})
}

func (a *agentConn) readPump() {
	defer a.shutdown()

	a.conn.SetReadLimit(maxMessageSize)
	a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPongHandler(func(string) error {
		a.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Log.Debugf("Agent %s unexpected close: %v", a.id, err)
			}
			return
		}
		a.deliver(data)
	}
}

func (a *agentConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		a.shutdown()
	}()

	for {
		select {
		case <-a.closed:
			return

		case message := <-a.send:
			a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				utils.Log.Debugf("Agent %s write error: %v", a.id, err)
				return
			}

		case <-ticker.C:
			a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
