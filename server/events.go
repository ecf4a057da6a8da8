package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"go_styletransfer/core"
	"go_styletransfer/metrics"
)

// Event types sent on /ws.
const (
	EventTransfer = "transfer"
	EventGPU      = "gpu"
)

// Event is the envelope of every websocket message.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// EventsConfig configures Events.
type EventsConfig struct {
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	BroadcastBuffer  int
	ClientSendBuffer int
}

// DefaultEventsConfig returns the default configuration.
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		BroadcastBuffer:  256,
		ClientSendBuffer: 64,
	}
}

// Events fans transfer records and GPU samples out to websocket clients.
// It is a styletransfer observer and a metrics GPU sink. Clients never send
// anything but control frames.
type Events struct {
	config   EventsConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	closed  bool

	broadcast chan Event
}

// NewEvents creates a broadcaster. Call Start to run it.
func NewEvents(config EventsConfig, logger *zap.Logger) *Events {
	defaults := DefaultEventsConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = defaults.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = defaults.WriteWait
	}
	if config.BroadcastBuffer <= 0 {
		config.BroadcastBuffer = defaults.BroadcastBuffer
	}
	if config.ClientSendBuffer <= 0 {
		config.ClientSendBuffer = defaults.ClientSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{
		config:    config,
		logger:    logger.Named("events"),
		clients:   make(map[*websocket.Conn]chan []byte),
		broadcast: make(chan Event, config.BroadcastBuffer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the broadcast loop until ctx is cancelled, then closes every
// client and refuses new ones.
func (e *Events) Start(ctx context.Context) {
	ping := time.NewTicker(e.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			e.closeAll()
			return
		case ev := <-e.broadcast:
			e.send(ev)
		case <-ping.C:
			e.pingAll()
		}
	}
}

// HandleConnection upgrades GET /ws.
func (e *Events) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(e.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(e.config.PongWait))
	})

	if !e.addClient(conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(e.config.WriteWait))
		conn.Close()
		return
	}
	go e.readPump(conn)
}

// Publish queues ev for every client, dropping it when the queue is full.
func (e *Events) Publish(ev Event) {
	select {
	case e.broadcast <- ev:
	default:
		e.logger.Warn("event queue full, dropping event", zap.String("type", ev.Type))
	}
}

// ObserveTransfer publishes rec as a transfer event.
func (e *Events) ObserveTransfer(rec core.TransferRecord) {
	e.Publish(Event{Type: EventTransfer, Timestamp: time.Now(), Data: rec})
}

// UpdateGPUMetrics publishes a GPU sample.
func (e *Events) UpdateGPUMetrics(gpu metrics.GPUMetrics) {
	e.Publish(Event{Type: EventGPU, Timestamp: time.Now(), Data: gpu})
}

// ClientCount returns the number of connected clients.
func (e *Events) ClientCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients)
}

func (e *Events) addClient(conn *websocket.Conn) bool {
	send := make(chan []byte, e.config.ClientSendBuffer)
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.clients[conn] = send
	total := len(e.clients)
	e.mu.Unlock()

	go e.writePump(conn, send)
	e.logger.Debug("websocket client connected",
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.Int("clients", total),
	)
	return true
}

func (e *Events) removeClient(conn *websocket.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if send, ok := e.clients[conn]; ok {
		close(send)
		delete(e.clients, conn)
	}
}

func (e *Events) send(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.Warn("failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	var slow []*websocket.Conn
	e.mu.RLock()
	for conn, send := range e.clients {
		select {
		case send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	e.mu.RUnlock()

	// Slow clients are dropped rather than allowed to stall the loop.
	for _, conn := range slow {
		e.logger.Debug("dropping slow websocket client", zap.String("remote_addr", conn.RemoteAddr().String()))
		e.removeClient(conn)
	}
}

func (e *Events) pingAll() {
	e.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(e.clients))
	for conn := range e.clients {
		conns = append(conns, conn)
	}
	e.mu.RUnlock()

	deadline := time.Now().Add(e.config.WriteWait)
	for _, conn := range conns {
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			e.removeClient(conn)
		}
	}
}

func (e *Events) closeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for conn, send := range e.clients {
		close(send)
		delete(e.clients, conn)
	}
}

func (e *Events) readPump(conn *websocket.Conn) {
	defer func() {
		e.removeClient(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				e.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

func (e *Events) writePump(conn *websocket.Conn, send <-chan []byte) {
	defer conn.Close()
	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(e.config.WriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	conn.SetWriteDeadline(time.Now().Add(e.config.WriteWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
