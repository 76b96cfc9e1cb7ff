package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"groupcart/internal/config"
	"groupcart/internal/model"
	"groupcart/internal/monitor"
	"groupcart/pkg/log"
)

var logger = log.Component("realtime")

// Envelope wire frame used in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Dispatcher handles client lifecycle and inbound events. Events of one
// client are delivered sequentially, in arrival order.
type Dispatcher interface {
	HandleConnect(ctx context.Context, clientID string)
	HandleEvent(ctx context.Context, clientID, event string, data json.RawMessage)
	HandleDisconnect(ctx context.Context, clientID, username, roomID string)
}

// Hub tracks websocket clients and their room membership
type Hub struct {
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	metrics  *monitor.MetricsCollector

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	clients    map[string]*Client
	rooms      map[string]map[string]*Client
	dispatcher Dispatcher
}

// NewHub creates a hub; origins lists the browser origins allowed to
// upgrade, "*" allows any
func NewHub(cfg config.RealtimeConfig, origins []string, metrics *monitor.MetricsCollector) *Hub {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:     cfg,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

// SetDispatcher installs the event handler; call before serving
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.mu.Lock()
	h.dispatcher = d
	h.mu.Unlock()
}

// ServeWS upgrades the request and starts the client pumps
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := h.newClient(conn)
	h.register(c)

	logger.WithFields(log.Fields{
		"client_id": c.id,
		"remote":    r.RemoteAddr,
	}).Info("Websocket client connected")

	if d := h.getDispatcher(); d != nil {
		d.HandleConnect(h.ctx, c.id)
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// Join moves a client into roomID, leaving any previous room
func (h *Hub) Join(clientID, roomID, username string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	if c.roomID != "" && c.roomID != roomID {
		h.leaveLocked(c)
	}
	c.username = username
	c.roomID = roomID
	if roomID != "" {
		members, ok := h.rooms[roomID]
		if !ok {
			members = make(map[string]*Client)
			h.rooms[roomID] = members
		}
		members[clientID] = c
	}
	return true
}

// Member returns the identity a client joined with
func (h *Hub) Member(clientID string) (username, roomID string, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[clientID]
	if !ok {
		return "", "", false
	}
	return c.username, c.roomID, true
}

// Broadcast sends an event to every client in roomID
func (h *Hub) Broadcast(roomID, event string, data interface{}) {
	payload, ok := encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, payload)
	}
}

// BroadcastAll sends an event to every connected client
func (h *Hub) BroadcastAll(event string, data interface{}) {
	payload, ok := encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, payload)
	}
}

// Send delivers an event to one client
func (h *Hub) Send(clientID, event string, data interface{}) bool {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	payload, ok := encode(event, data)
	if !ok {
		return false
	}
	return h.deliver(c, payload)
}

// ClientCount number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize number of clients in roomID
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.cancel()

	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}

// deliver queues payload without blocking; a client whose buffer is full is
// evicted
func (h *Hub) deliver(c *Client, payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		h.metrics.RecordSlowClient()
		logger.WithField("client_id", c.id).Warn("Evicting slow websocket client")
		h.disconnect(c)
		return false
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
}

// disconnect closes c and reports it once to the dispatcher
func (h *Hub) disconnect(c *Client) {
	c.close()

	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	h.leaveLocked(c)
	username, roomID := c.username, c.roomID
	d := h.dispatcher
	h.mu.Unlock()

	h.metrics.ConnectionClosed()
	logger.WithFields(log.Fields{
		"client_id": c.id,
		"room_id":   roomID,
	}).Info("Websocket client disconnected")

	if d != nil {
		d.HandleDisconnect(h.ctx, c.id, username, roomID)
	}
}

func (h *Hub) leaveLocked(c *Client) {
	if members, ok := h.rooms[c.roomID]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, c.roomID)
		}
	}
}

func (h *Hub) getDispatcher() Dispatcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dispatcher
}

func encode(event string, data interface{}) ([]byte, bool) {
	payload, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		log.WithFields(log.Fields{
			"event": event,
			"error": err.Error(),
		}).Error("Failed to encode realtime event")
		return nil, false
	}
	return payload, true
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no origin
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// errorEvent shorthand for the error frame
func errorEvent(message string) model.ErrorEvent {
	return model.ErrorEvent{Message: message}
}
