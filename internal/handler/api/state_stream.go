package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	xlogger "MarketState/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StateStreamHandler serves /ws/state and fans every completed analysis out
// to the connected clients. New clients first receive the latest event per ticker.
type StateStreamHandler struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	latest  map[string][]byte
	closed  bool
}

func NewStateStreamHandler(logger *xlogger.Logger) *StateStreamHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StateStreamHandler{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
		latest:  make(map[string][]byte),
	}
}

func (h *StateStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/state", h.Serve)
}

func (h *StateStreamHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade error", xlogger.Error(err))
		return nil
	}
	client := &streamClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[client] = struct{}{}
	for _, msg := range h.latest {
		select {
		case client.send <- msg:
		default:
		}
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client connected", xlogger.Int("clients", count))

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// Clients returns the number of connected clients.
func (h *StateStreamHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishAnalysis broadcasts ev. Clients whose buffer is full miss the event.
func (h *StateStreamHandler) PublishAnalysis(_ context.Context, ev models.AnalysisEvent) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.latest[ev.Ticker] = msg
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("ws client too slow, event dropped", xlogger.String("ticker", ev.Ticker))
		}
	}
	return nil
}

// Close disconnects every client. Later connections are refused.
func (h *StateStreamHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}

func (h *StateStreamHandler) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *StateStreamHandler) writePump(c *streamClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; it only tracks liveness.
func (h *StateStreamHandler) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.logger.Debug("ws client disconnected")
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ domrepo.EventPublisher = (*StateStreamHandler)(nil)
