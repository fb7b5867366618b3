package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/veostudio/studio-agent/internal/jobs"
	"github.com/veostudio/studio-agent/internal/logging"
	"github.com/veostudio/studio-agent/internal/playback"
	"github.com/veostudio/studio-agent/internal/studio"
)

const (
	previewRoom = "preview"

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
	readLimit    = 4096
)

// Event is the envelope of every WebSocket message in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Event: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Event: name, Data: data}, nil
}

func jobRoom(id string) string { return "job:" + id }

type client struct {
	id      string
	room    string
	conn    *websocket.Conn
	send    chan Event
	onEvent func(Event)
}

// Hub fans events out to WebSocket clients grouped in rooms: one room for
// the preview transport and one per export job.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[string]*client
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		rooms: make(map[string]map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin,
		},
		logger: logging.WithComponent(logger, "hub"),
	}
}

// Send implements playback.CommandSink.
func (h *Hub) Send(cmd playback.Command) {
	h.Broadcast(previewRoom, "command", cmd)
}

// PreviewChanged pushes the current preview state to preview subscribers.
func (h *Hub) PreviewChanged(state studio.PreviewState) {
	h.Broadcast(previewRoom, "state", state)
}

// JobUpdated implements jobs.Notifier. Subscribers of a job are closed once
// it is terminal.
func (h *Hub) JobUpdated(job *jobs.ExportJob) {
	room := jobRoom(job.ID)
	h.Broadcast(room, "job", JobToResponse(job))
	if job.Terminal() {
		h.closeRoom(room)
	}
}

// Broadcast queues an event for every client in room. Clients whose buffer
// is full are dropped.
func (h *Hub) Broadcast(room, name string, payload any) {
	ev, err := newEvent(name, payload)
	if err != nil {
		h.logger.Error("failed to encode event", "event", name, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.rooms[room] {
		select {
		case c.send <- ev:
		default:
			h.logger.Warn("dropping slow websocket client", "room", room, "client_id", id)
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connections in room.
func (h *Hub) Clients(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// session describes one WebSocket subscription.
type session struct {
	room string
	// initial events are queued before the client joins the room.
	initial []Event
	// once closes the connection after the initial events.
	once    bool
	onEvent func(Event)
	// joined runs after the client is in the room.
	joined func()
}

// serve upgrades the request and runs the connection until it closes.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, s session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:      uuid.New().String(),
		room:    s.room,
		conn:    conn,
		send:    make(chan Event, sendBuffer+len(s.initial)),
		onEvent: s.onEvent,
	}
	for _, ev := range s.initial {
		c.send <- ev
	}

	if s.once {
		close(c.send)
		h.writePump(c)
		return
	}

	h.register(c)
	if s.joined != nil {
		s.joined()
	}
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[string]*client)
	}
	h.rooms[c.room][c.id] = c
	h.logger.Debug("websocket client joined", "room", c.room, "client_id", c.id)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	members := h.rooms[c.room]
	if _, ok := members[c.id]; !ok {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	close(c.send)
}

func (h *Hub) closeRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.rooms[room] {
		h.removeLocked(c)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// checkWebSocketOrigin accepts allowlisted browser origins and non-browser
// clients on loopback.
func checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return isLoopbackRemoteAddr(r.RemoteAddr)
	}
	return isAllowedOrigin(origin)
}
